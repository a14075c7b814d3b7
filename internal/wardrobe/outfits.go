package wardrobe

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/url"

	"github.com/fittedhq/fitted-go/internal/log"
	"github.com/fittedhq/fitted-go/internal/transport"
)

// SearchOutfits returns one page of saved outfits, cached like closet
// searches.
func (c *Client) SearchOutfits(ctx context.Context, req SearchRequest) (*OutfitPage, error) {
	key, err := cacheKey("outfits", req)
	if err != nil {
		return nil, err
	}
	if cached, ok := c.cache.Get(key); ok {
		log.LogTraceWithFields("wardrobe", "Search served from cache", map[string]any{
			"key": key,
		})
		return cached.(*OutfitPage), nil
	}

	body, err := c.api.Post(ctx, outfitSearchPath, req, transport.Options{})
	if err != nil {
		return nil, err
	}

	var page OutfitPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decoding outfit search response: %w", err)
	}

	c.cache.SetDefault(key, &page)
	return &page, nil
}

// GetOutfit fetches one outfit by id
func (c *Client) GetOutfit(ctx context.Context, id string) (*Outfit, error) {
	path := outfitsPath + "?outfitId=" + url.QueryEscape(id)
	body, err := c.api.Get(ctx, path, transport.Options{})
	if err != nil {
		return nil, err
	}

	var outfit Outfit
	if err := json.Unmarshal(body, &outfit); err != nil {
		return nil, fmt.Errorf("decoding outfit: %w", err)
	}
	return &outfit, nil
}

// CreateOutfitRequest carries a rendered canvas snapshot plus the item
// placements that produced it.
type CreateOutfitRequest struct {
	Image         []byte
	ImageName     string
	ClothingItems []OutfitClothingItem
	Tags          []string
}

// CreateOutfit saves a canvas arrangement
func (c *Client) CreateOutfit(ctx context.Context, req CreateOutfitRequest) (*Outfit, error) {
	form, contentType, err := buildOutfitForm("", req)
	if err != nil {
		return nil, err
	}

	body, err := c.api.PostForm(ctx, outfitsPath, form, contentType, transport.Options{})
	if err != nil {
		return nil, err
	}

	var outfit Outfit
	if err := json.Unmarshal(body, &outfit); err != nil {
		return nil, fmt.Errorf("decoding outfit: %w", err)
	}

	c.invalidate()
	return &outfit, nil
}

// UpdateOutfit replaces an outfit's snapshot and placements
func (c *Client) UpdateOutfit(ctx context.Context, id string, req CreateOutfitRequest) (*Outfit, error) {
	form, contentType, err := buildOutfitForm(id, req)
	if err != nil {
		return nil, err
	}

	body, err := c.api.PutForm(ctx, outfitsPath, form, contentType, transport.Options{})
	if err != nil {
		return nil, err
	}

	var outfit Outfit
	if err := json.Unmarshal(body, &outfit); err != nil {
		return nil, fmt.Errorf("decoding outfit: %w", err)
	}

	c.invalidate()
	return &outfit, nil
}

// DeleteOutfit removes a saved outfit
func (c *Client) DeleteOutfit(ctx context.Context, id string) error {
	path := outfitsPath + "?outfitId=" + url.QueryEscape(id)
	if _, err := c.api.Delete(ctx, path, transport.Options{}); err != nil {
		return err
	}
	c.invalidate()
	return nil
}

// buildOutfitForm writes the multipart body the outfit endpoints expect:
// the image file, the placements as a JSON form field, repeated tag
// fields, and the outfit id on updates.
func buildOutfitForm(id string, req CreateOutfitRequest) ([]byte, string, error) {
	placements, err := json.Marshal(req.ClothingItems)
	if err != nil {
		return nil, "", fmt.Errorf("encoding clothing items: %w", err)
	}

	return buildForm(func(w *multipart.Writer) error {
		if id != "" {
			if err := w.WriteField("outfitId", id); err != nil {
				return err
			}
		}
		if err := writeFile(w, "outfitImageFile", req.ImageName, req.Image); err != nil {
			return err
		}
		if err := w.WriteField("clothingItems", string(placements)); err != nil {
			return err
		}
		for _, tag := range req.Tags {
			if err := w.WriteField("tags", tag); err != nil {
				return err
			}
		}
		return nil
	})
}
