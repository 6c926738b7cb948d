package site

import (
	"bytes"
	"html/template"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
	"gorm.io/gorm"

	"solace/models"
)

type SiteModule struct {
	db *gorm.DB
}

// markdown renderer configured with Goldmark and useful extensions
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,     // tables, strikethrough, task lists, autolinks (GFM set)
		extension.Linkify, // linkify raw URLs
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithUnsafe(), // allow raw HTML passthrough
	),
)

func NewSiteModule(db *gorm.DB) *SiteModule {
	return &SiteModule{db: db}
}

func (s *SiteModule) RegisterRoutes(router *gin.Engine) {
	router.GET("/", s.index)
	router.GET("/post/:id", s.post)
	router.GET("/reset/:token", s.resetPage)
	router.GET("/sitemap.xml", s.sitemap)
}

func (s *SiteModule) index(c *gin.Context) {
	c.HTML(http.StatusOK, "home.html", gin.H{
		"title": "Solace - A quiet place for quotes",
	})
}

func (s *SiteModule) post(c *gin.Context) {
	postID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.HTML(http.StatusNotFound, "site_error.html", gin.H{
			"error": "Post not found",
		})
		return
	}

	var post models.Post
	if err := s.db.First(&post, postID).Error; err != nil {
		c.HTML(http.StatusNotFound, "site_error.html", gin.H{
			"error": "Post not found",
		})
		return
	}

	var author models.User
	s.db.First(&author, post.UserID)

	var tags []string
	s.db.Model(&models.Hashtag{}).
		Joins("INNER JOIN post_hashtags ON post_hashtags.hashtag_id = hashtags.id").
		Where("post_hashtags.post_id = ?", post.ID).
		Pluck("hashtags.name", &tags)

	font, body := SplitFontDirective(post.Content)

	c.HTML(http.StatusOK, "post.html", gin.H{
		"post": gin.H{
			"ID":        post.ID,
			"Title":     post.Title,
			"Content":   template.HTML(renderMarkdown(body)),
			"CreatedAt": post.CreatedAt,
		},
		"author":    author.Name,
		"tags":      tags,
		"fontClass": font,
	})
}

func (s *SiteModule) resetPage(c *gin.Context) {
	c.HTML(http.StatusOK, "reset.html", gin.H{
		"token": c.Param("token"),
	})
}

func (s *SiteModule) sitemap(c *gin.Context) {
	domain := os.Getenv("DOMAIN")
	if domain == "" {
		domain = "http://localhost:8080"
	}
	domain = strings.TrimSuffix(domain, "/")

	var sitemap strings.Builder
	sitemap.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sitemap.WriteString("\n")
	sitemap.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	sitemap.WriteString("\n")

	sitemap.WriteString("  <url>\n")
	sitemap.WriteString("    <loc>" + domain + "/</loc>\n")
	sitemap.WriteString("    <changefreq>daily</changefreq>\n")
	sitemap.WriteString("    <priority>1.0</priority>\n")
	sitemap.WriteString("  </url>\n")

	var posts []models.Post
	s.db.Order("created_at DESC").Find(&posts)

	for _, post := range posts {
		sitemap.WriteString("  <url>\n")
		sitemap.WriteString("    <loc>" + domain + "/post/" + strconv.Itoa(int(post.ID)) + "</loc>\n")
		sitemap.WriteString("    <lastmod>" + post.UpdatedAt.Format(time.RFC3339) + "</lastmod>\n")
		sitemap.WriteString("    <changefreq>monthly</changefreq>\n")
		sitemap.WriteString("    <priority>0.6</priority>\n")
		sitemap.WriteString("  </url>\n")
	}

	sitemap.WriteString("</urlset>\n")

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, sitemap.String())
}

// SplitFontDirective separates a leading [font:name] marker from the
// content body. The marker is a presentation hint only; storage and the
// feed API keep it verbatim.
func SplitFontDirective(content string) (font, body string) {
	if !strings.HasPrefix(content, "[font:") {
		return "", content
	}
	end := strings.Index(content, "]")
	if end < 0 {
		return "", content
	}
	return content[len("[font:"):end], strings.TrimLeft(content[end+1:], "\n")
}

func renderMarkdown(content string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(content), &buf); err != nil {
		// On error, fall back to the raw content so the page still renders.
		return content
	}
	return buf.String()
}
