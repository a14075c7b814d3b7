package wardrobe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fittedhq/fitted-go/internal/api"
	"github.com/fittedhq/fitted-go/internal/notify"
	"github.com/fittedhq/fitted-go/internal/refresh"
	"github.com/fittedhq/fitted-go/internal/transport"
)

func newWardrobeClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	jar, err := transport.NewMemoryJar()
	require.NoError(t, err)
	tr, err := transport.New(server.URL, 5*time.Second, jar)
	require.NoError(t, err)

	apiClient := api.NewClient(tr, refresh.NewCoordinator(tr, "/api/v1/auth/refresh", 0), notify.NewAuthFailureNotifier())
	return NewClient(apiClient), server
}

func closetPage(items ...ClothingItem) ClothingItemPage {
	return ClothingItemPage{Items: items, TotalCount: int64(len(items)), HasNext: false}
}

func TestSearchClothingItems_DecodesPage(t *testing.T) {
	var gotBody SearchRequest
	client, _ := newWardrobeClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, clothingSearchPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(closetPage(
			ClothingItem{ID: "c-1", Name: "Blue Oxford", Type: TypeTop},
			ClothingItem{ID: "c-2", Name: "Chinos", Type: TypeBottom},
		))
	}))

	req := SearchRequest{
		Search:  &Search{SearchText: "blue", SearchIn: []string{"name"}},
		Sort:    &Sort{SortBy: "created_at", SortOrder: SortDescending},
		Page:    0,
		MaxSize: 20,
	}
	page, err := client.SearchClothingItems(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, page.Items, 2)
	assert.Equal(t, "Blue Oxford", page.Items[0].Name)
	assert.Equal(t, TypeTop, page.Items[0].Type)
	assert.Equal(t, int64(2), page.TotalCount)

	require.NotNil(t, gotBody.Search)
	assert.Equal(t, "blue", gotBody.Search.SearchText)
}

func TestSearchClothingItems_IdenticalRequestsHitCache(t *testing.T) {
	var calls atomic.Int32
	client, _ := newWardrobeClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(closetPage(ClothingItem{ID: "c-1"}))
	}))

	req := SearchRequest{Page: 0, MaxSize: 20}

	first, err := client.SearchClothingItems(context.Background(), req)
	require.NoError(t, err)
	second, err := client.SearchClothingItems(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load(), "repeat search within the TTL is served locally")
	assert.Equal(t, first, second)

	// A different page is a different request
	req.Page = 1
	_, err = client.SearchClothingItems(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearchCaches_ClosetAndOutfitsAreSeparate(t *testing.T) {
	var closetCalls, outfitCalls atomic.Int32
	client, _ := newWardrobeClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case clothingSearchPath:
			closetCalls.Add(1)
			json.NewEncoder(w).Encode(ClothingItemPage{})
		case outfitSearchPath:
			outfitCalls.Add(1)
			json.NewEncoder(w).Encode(OutfitPage{})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	req := SearchRequest{MaxSize: 10}
	_, err := client.SearchClothingItems(context.Background(), req)
	require.NoError(t, err)
	_, err = client.SearchOutfits(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int32(1), closetCalls.Load())
	assert.Equal(t, int32(1), outfitCalls.Load(), "same shape, different endpoint, no cross-talk")
}

func TestCreateClothingItem_FormAndInvalidation(t *testing.T) {
	var searchCalls atomic.Int32
	client, _ := newWardrobeClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case clothingSearchPath:
			searchCalls.Add(1)
			json.NewEncoder(w).Encode(ClothingItemPage{})
		case clothingItemsPath:
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "Blue Oxford", r.FormValue("name"))
			assert.Equal(t, "TOP", r.FormValue("type"))
			assert.Equal(t, "blue", r.FormValue("color"))

			file, header, err := r.FormFile("originalImageFile")
			require.NoError(t, err)
			file.Close()
			assert.Equal(t, "oxford.jpg", header.Filename)

			_, _, err = r.FormFile("modifiedImageFile")
			assert.Error(t, err, "optional cutout was not sent")

			json.NewEncoder(w).Encode(ClothingItem{ID: "c-9", Name: "Blue Oxford"})
		}
	}))

	// Warm the cache, then mutate
	req := SearchRequest{MaxSize: 10}
	_, err := client.SearchClothingItems(context.Background(), req)
	require.NoError(t, err)

	item, err := client.CreateClothingItem(context.Background(), CreateClothingItemRequest{
		Name:              "Blue Oxford",
		Type:              "TOP",
		Color:             "blue",
		OriginalImage:     []byte("jpeg-bytes"),
		OriginalImageName: "oxford.jpg",
	})
	require.NoError(t, err)
	assert.Equal(t, "c-9", item.ID)

	_, err = client.SearchClothingItems(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), searchCalls.Load(), "mutation must flush cached pages")
}

func TestGetAndDeleteClothingItem_QueryParam(t *testing.T) {
	var gotMethod, gotID string
	client, _ := newWardrobeClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotID = r.URL.Query().Get("clothingItemId")
		json.NewEncoder(w).Encode(ClothingItem{ID: gotID})
	}))

	item, err := client.GetClothingItem(context.Background(), "c 1/with?chars")
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "c 1/with?chars", gotID, "id must survive query escaping")
	assert.Equal(t, "c 1/with?chars", item.ID)

	require.NoError(t, client.DeleteClothingItem(context.Background(), "c-2"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "c-2", gotID)
}

func TestCreateOutfit_Form(t *testing.T) {
	client, _ := newWardrobeClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Empty(t, r.FormValue("outfitId"), "creates carry no id")

		var placements []OutfitClothingItem
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("clothingItems")), &placements))
		require.Len(t, placements, 2)
		assert.Equal(t, "c-1", placements[0].ClothingItemID)
		assert.Equal(t, 12.5, placements[0].PositionXPercent)

		assert.Equal(t, []string{"summer", "work"}, r.MultipartForm.Value["tags"])

		_, header, err := r.FormFile("outfitImageFile")
		require.NoError(t, err)
		assert.Equal(t, "canvas.png", header.Filename)

		json.NewEncoder(w).Encode(Outfit{ID: "o-1", Tags: []string{"summer", "work"}})
	}))

	outfit, err := client.CreateOutfit(context.Background(), CreateOutfitRequest{
		Image:     []byte("png-bytes"),
		ImageName: "canvas.png",
		ClothingItems: []OutfitClothingItem{
			{ClothingItemID: "c-1", PositionXPercent: 12.5, PositionYPercent: 5, WidthPercent: 30, HeightPercent: 40, ZIndex: 1},
			{ClothingItemID: "c-2", PositionXPercent: 50, PositionYPercent: 55, WidthPercent: 30, HeightPercent: 40, ZIndex: 2},
		},
		Tags: []string{"summer", "work"},
	})
	require.NoError(t, err)
	assert.Equal(t, "o-1", outfit.ID)
}

func TestUpdateOutfit_SendsIDField(t *testing.T) {
	client, _ := newWardrobeClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "o-7", r.FormValue("outfitId"))
		json.NewEncoder(w).Encode(Outfit{ID: "o-7"})
	}))

	outfit, err := client.UpdateOutfit(context.Background(), "o-7", CreateOutfitRequest{
		Image:     []byte("png-bytes"),
		ImageName: "canvas.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "o-7", outfit.ID)
}

func TestDeleteOutfit_InvalidatesCache(t *testing.T) {
	var searchCalls atomic.Int32
	client, _ := newWardrobeClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == outfitSearchPath {
			searchCalls.Add(1)
			json.NewEncoder(w).Encode(OutfitPage{})
			return
		}
		require.Equal(t, "o-1", r.URL.Query().Get("outfitId"))
		w.WriteHeader(http.StatusOK)
	}))

	req := SearchRequest{MaxSize: 10}
	_, err := client.SearchOutfits(context.Background(), req)
	require.NoError(t, err)

	require.NoError(t, client.DeleteOutfit(context.Background(), "o-1"))

	_, err = client.SearchOutfits(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), searchCalls.Load())
}
