// Package wardrobe is the feature client for the closet and outfit
// endpoints. Everything goes through the authenticated request pipeline;
// this layer only knows shapes, paths, and caching.
package wardrobe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/url"
	"time"

	"github.com/fittedhq/fitted-go/internal/api"
	"github.com/fittedhq/fitted-go/internal/log"
	"github.com/fittedhq/fitted-go/internal/transport"
	gocache "github.com/patrickmn/go-cache"
)

const (
	clothingItemsPath  = "/api/v1/clothing-items"
	clothingSearchPath = "/api/v1/clothing-items/search"
	outfitsPath        = "/api/v1/outfits"
	outfitSearchPath   = "/api/v1/outfits/search"
)

// searchCacheTTL keeps paginated browsing snappy without letting stale
// pages linger; any mutation flushes the cache outright.
const searchCacheTTL = 30 * time.Second

// Client calls the wardrobe endpoints through the request pipeline
type Client struct {
	api   *api.Client
	cache *gocache.Cache
}

// NewClient creates a wardrobe client with an empty search cache
func NewClient(client *api.Client) *Client {
	return &Client{
		api:   client,
		cache: gocache.New(searchCacheTTL, time.Minute),
	}
}

// SearchClothingItems returns one page of closet search results. Identical
// requests within the cache TTL are served locally.
func (c *Client) SearchClothingItems(ctx context.Context, req SearchRequest) (*ClothingItemPage, error) {
	key, err := cacheKey("clothing", req)
	if err != nil {
		return nil, err
	}
	if cached, ok := c.cache.Get(key); ok {
		log.LogTraceWithFields("wardrobe", "Search served from cache", map[string]any{
			"key": key,
		})
		return cached.(*ClothingItemPage), nil
	}

	body, err := c.api.Post(ctx, clothingSearchPath, req, transport.Options{})
	if err != nil {
		return nil, err
	}

	var page ClothingItemPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	c.cache.SetDefault(key, &page)
	return &page, nil
}

// GetClothingItem fetches one garment by id
func (c *Client) GetClothingItem(ctx context.Context, id string) (*ClothingItem, error) {
	path := clothingItemsPath + "?clothingItemId=" + url.QueryEscape(id)
	body, err := c.api.Get(ctx, path, transport.Options{})
	if err != nil {
		return nil, err
	}

	var item ClothingItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("decoding clothing item: %w", err)
	}
	return &item, nil
}

// CreateClothingItemRequest carries the upload form for a new garment.
// ModifiedImage (the background-removed cutout) is optional.
type CreateClothingItemRequest struct {
	Name              string
	Type              string
	Color             string
	OriginalImage     []byte
	OriginalImageName string
	ModifiedImage     []byte
	ModifiedImageName string
}

// CreateClothingItem uploads a garment and returns the stored item
func (c *Client) CreateClothingItem(ctx context.Context, req CreateClothingItemRequest) (*ClothingItem, error) {
	form, contentType, err := buildForm(func(w *multipart.Writer) error {
		if err := w.WriteField("name", req.Name); err != nil {
			return err
		}
		if err := w.WriteField("type", req.Type); err != nil {
			return err
		}
		if req.Color != "" {
			if err := w.WriteField("color", req.Color); err != nil {
				return err
			}
		}
		if err := writeFile(w, "originalImageFile", req.OriginalImageName, req.OriginalImage); err != nil {
			return err
		}
		if req.ModifiedImage != nil {
			if err := writeFile(w, "modifiedImageFile", req.ModifiedImageName, req.ModifiedImage); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	body, err := c.api.PostForm(ctx, clothingItemsPath, form, contentType, transport.Options{})
	if err != nil {
		return nil, err
	}

	var item ClothingItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("decoding clothing item: %w", err)
	}

	c.invalidate()
	return &item, nil
}

// DeleteClothingItem removes a garment from the closet
func (c *Client) DeleteClothingItem(ctx context.Context, id string) error {
	path := clothingItemsPath + "?clothingItemId=" + url.QueryEscape(id)
	if _, err := c.api.Delete(ctx, path, transport.Options{}); err != nil {
		return err
	}
	c.invalidate()
	return nil
}

// invalidate drops every cached search page after a mutation
func (c *Client) invalidate() {
	c.cache.Flush()
}

func cacheKey(prefix string, req SearchRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encoding search request: %w", err)
	}
	return prefix + ":" + string(data), nil
}

// buildForm assembles a multipart body into a byte slice so the pipeline
// can re-send it on a refresh-triggered retry.
func buildForm(write func(*multipart.Writer) error) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := write(w); err != nil {
		return nil, "", fmt.Errorf("building form: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("building form: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field, filename string, data []byte) error {
	if filename == "" {
		filename = field
	}
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}
