package models

// CrawledPage is one page captured during a website crawl before it is
// merged into a single document for ingestion.
type CrawledPage struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// URLImportRequest imports a single page or crawls a site
type URLImportRequest struct {
	URL      string `json:"url" binding:"required,url"`
	Crawl    bool   `json:"crawl"`
	MaxPages int    `json:"max_pages"`
}

// TextImportRequest ingests raw pasted text as a document
type TextImportRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// YouTubeImportRequest ingests a video transcript as a document. URL
// accepts the common YouTube URL shapes or a bare video id.
type YouTubeImportRequest struct {
	URL   string `json:"url" binding:"required"`
	Title string `json:"title"`
}
