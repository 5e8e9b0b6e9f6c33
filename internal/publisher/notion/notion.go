// Package notion publishes the curated set to a Notion page as toggle
// blocks grouped by source.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/inbix/curator/internal/curator"
)

// maxBlocksPerRequest is the Notion API limit for one append call.
const maxBlocksPerRequest = 100

// block is a loosely typed Notion block payload. The API surface is too
// polymorphic for a fixed struct to buy anything.
type block = map[string]any

// Config holds Notion API credentials and target.
type Config struct {
	Token      string
	PageID     string
	BaseURL    string
	APIVersion string
	BatchSize  int
}

// Publisher appends curated items to the configured page.
type Publisher struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
	now    func() time.Time
}

// New builds a Publisher.
func New(cfg Config, logger *zap.Logger) *Publisher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.notion.com/v1"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2022-06-28"
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > maxBlocksPerRequest {
		cfg.BatchSize = maxBlocksPerRequest
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		cfg:    cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger.Named("notion"),
		now:    time.Now,
	}
}

// Publish renders every item into blocks and appends them in batches.
// It reports success only when every batch succeeded; a failed batch does
// not stop the remaining ones.
func (p *Publisher) Publish(ctx context.Context, items []curator.Item) bool {
	p.logger.Info("publishing items", zap.Int("items", len(items)))

	blocks := p.buildBlocks(items)
	success := true
	for i := 0; i < len(blocks); i += p.cfg.BatchSize {
		end := i + p.cfg.BatchSize
		if end > len(blocks) {
			end = len(blocks)
		}
		if err := p.appendBlocks(ctx, blocks[i:end]); err != nil {
			p.logger.Error("batch append failed", zap.Error(err))
			success = false
		}
	}

	if success {
		p.logger.Info("publish finished")
	} else {
		p.logger.Error("publish finished with errors")
	}
	return success
}

// TestConnection checks that the page is reachable with the configured
// credentials, logging its title when available.
func (p *Publisher) TestConnection(ctx context.Context) bool {
	url := fmt.Sprintf("%s/pages/%s", p.cfg.BaseURL, p.cfg.PageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	p.setHeaders(req)

	resp, err := p.http.Do(req)
	if err != nil {
		p.logger.Error("connection test failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		p.logger.Error("connection test rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", truncate(body, 200)),
		)
		return false
	}

	p.logger.Info("connection test ok", zap.String("page", pageTitle(body)))
	return true
}

func (p *Publisher) buildBlocks(items []curator.Item) []block {
	blocks := []block{
		headingBlock(fmt.Sprintf("Curadoria Semanal - %s", p.now().Format("02/01/2006")), 1),
		dividerBlock(),
	}

	sections := []struct {
		source  curator.Source
		heading string
	}{
		{curator.SourceVideo, "Vídeos"},
		{curator.SourceForum, "Fóruns"},
		{curator.SourceNewsletter, "Newsletters"},
		{curator.SourceMicroblog, "X (Twitter)"},
	}
	for _, section := range sections {
		var group []curator.Item
		for _, item := range items {
			if item.Source == section.source {
				group = append(group, item)
			}
		}
		if len(group) == 0 {
			continue
		}
		blocks = append(blocks, headingBlock(section.heading, 2))
		for _, item := range group {
			blocks = append(blocks, toggleBlock(item))
		}
	}
	return blocks
}

func (p *Publisher) appendBlocks(ctx context.Context, blocks []block) error {
	payload, err := json.Marshal(map[string]any{"children": blocks})
	if err != nil {
		return fmt.Errorf("encode blocks: %w", err)
	}

	url := fmt.Sprintf("%s/blocks/%s/children", p.cfg.BaseURL, p.cfg.PageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	p.setHeaders(req)

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("append blocks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("append blocks: status %d: %s", resp.StatusCode, truncate(body, 300))
	}
	p.logger.Info("blocks appended", zap.Int("blocks", len(blocks)))
	return nil
}

func (p *Publisher) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", p.cfg.APIVersion)
}

func toggleBlock(item curator.Item) block {
	description := item.Description
	if description == "" {
		description = "Sem descrição disponível."
	}
	description = curator.Truncate(description, 2000)

	children := []block{
		grayParagraph(fmt.Sprintf("Fonte: %s | Canal: %s", item.Source, item.Channel)),
		paragraph(description),
		grayParagraph("Autor: " + item.Author),
	}
	if item.URL != "" {
		children = append(children, block{
			"object":   "block",
			"type":     "bookmark",
			"bookmark": map[string]any{"url": item.URL},
		})
	}

	return block{
		"object": "block",
		"type":   "toggle",
		"toggle": map[string]any{
			"rich_text": []block{{
				"type":        "text",
				"text":        map[string]any{"content": item.Title},
				"annotations": map[string]any{"bold": true},
			}},
			"children": children,
		},
	}
}

func headingBlock(text string, level int) block {
	kind := fmt.Sprintf("heading_%d", level)
	return block{
		"object": "block",
		"type":   kind,
		kind: map[string]any{
			"rich_text": []block{{
				"type": "text",
				"text": map[string]any{"content": text},
			}},
		},
	}
}

func dividerBlock() block {
	return block{
		"object":  "block",
		"type":    "divider",
		"divider": map[string]any{},
	}
}

func paragraph(text string) block {
	return block{
		"object": "block",
		"type":   "paragraph",
		"paragraph": map[string]any{
			"rich_text": []block{{
				"type": "text",
				"text": map[string]any{"content": text},
			}},
		},
	}
}

func grayParagraph(text string) block {
	return block{
		"object": "block",
		"type":   "paragraph",
		"paragraph": map[string]any{
			"rich_text": []block{{
				"type":        "text",
				"text":        map[string]any{"content": text},
				"annotations": map[string]any{"color": "gray"},
			}},
		},
	}
}

// pageTitle digs the title out of a page response; best effort.
func pageTitle(body []byte) string {
	var page struct {
		Properties map[string]struct {
			Type  string `json:"type"`
			Title []struct {
				PlainText string `json:"plain_text"`
			} `json:"title"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return "unknown"
	}
	for _, prop := range page.Properties {
		if prop.Type == "title" && len(prop.Title) > 0 {
			return prop.Title[0].PlainText
		}
	}
	return "unknown"
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
