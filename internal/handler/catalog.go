package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/labstack/echo/v4"

	"github.com/festival-platform/program-scheduler/internal/logging"
	"github.com/festival-platform/program-scheduler/internal/model"
	"github.com/festival-platform/program-scheduler/internal/repository"
	"github.com/festival-platform/program-scheduler/internal/scheduler"
)

// CacheInvalidator drops cached public responses of a festival.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, festivalID uint64) error
}

// CatalogHandler manages festivals, stages and artists, the records the
// program is built from.
type CatalogHandler struct {
	FestivalRepo    *repository.FestivalRepo
	StageRepo       *repository.StageRepo
	ArtistRepo      *repository.ArtistRepo
	PerformanceRepo *repository.PerformanceRepo
	Cache           CacheInvalidator
}

// NewCatalogHandler constructs a CatalogHandler and panics if any repository
// is nil.  cache may be nil.
func NewCatalogHandler(festivals *repository.FestivalRepo, stages *repository.StageRepo, artists *repository.ArtistRepo, performances *repository.PerformanceRepo, cache CacheInvalidator) *CatalogHandler {
	if festivals == nil || stages == nil || artists == nil || performances == nil {
		panic("nil repository passed to NewCatalogHandler")
	}
	return &CatalogHandler{
		FestivalRepo:    festivals,
		StageRepo:       stages,
		ArtistRepo:      artists,
		PerformanceRepo: performances,
		Cache:           cache,
	}
}

// ---- Festivals ----

// CreateFestival handles POST /v1/admin/festivals.  The slug defaults to a
// lower-case, dash separated form of the name.
func (h *CatalogHandler) CreateFestival(c echo.Context) error {
	var body struct {
		Name     string `json:"name"`
		Slug     string `json:"slug"`
		StartsAt string `json:"startsAt"`
		EndsAt   string `json:"endsAt"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return badRequest(c, "name is required")
	}
	slug := strings.TrimSpace(body.Slug)
	if slug == "" {
		slug = slugify(name)
	}
	if slug == "" || slug != slugify(slug) {
		return badRequest(c, "slug may only contain lower-case letters, digits and dashes")
	}
	start, err := parseTimestamp("startsAt", body.StartsAt)
	if err != nil {
		return badRequest(c, err.Error())
	}
	end, err := parseTimestamp("endsAt", body.EndsAt)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := scheduler.ValidateTimeRange(start, end); err != nil {
		return schedulerError(c, err)
	}

	f := &model.Festival{Name: name, Slug: slug, StartsAt: start, EndsAt: end}
	if err := h.FestivalRepo.Create(c.Request().Context(), f); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return fail(c, http.StatusConflict, codeConflict, "slug already in use")
		}
		return internalError(c, err)
	}
	return c.JSON(http.StatusCreated, f)
}

// ListFestivals handles GET /v1/festivals.
func (h *CatalogHandler) ListFestivals(c echo.Context) error {
	items, err := h.FestivalRepo.List(c.Request().Context())
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetFestival handles GET /v1/festivals/:id.
func (h *CatalogHandler) GetFestival(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid festival id")
	}
	f, err := h.FestivalRepo.GetByID(c.Request().Context(), id)
	if err != nil {
		return h.repoError(c, err, "festival not found")
	}
	return c.JSON(http.StatusOK, f)
}

// ---- Stages ----

// CreateStage handles POST /v1/admin/festivals/:id/stages.
func (h *CatalogHandler) CreateStage(c echo.Context) error {
	festivalID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid festival id")
	}
	var body struct {
		Name        string  `json:"name"`
		Description *string `json:"description"`
		Capacity    *uint32 `json:"capacity"`
		Location    *string `json:"location"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return badRequest(c, "name is required")
	}
	ctx := c.Request().Context()
	if _, err := h.FestivalRepo.GetByID(ctx, festivalID); err != nil {
		return h.repoError(c, err, "festival not found")
	}

	s := &model.Stage{
		FestivalID:  festivalID,
		Name:        name,
		Description: optionalString(body.Description),
		Capacity:    body.Capacity,
		Location:    optionalString(body.Location),
	}
	if err := h.StageRepo.Create(ctx, s); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return fail(c, http.StatusConflict, codeConflict, "a stage with this name already exists in the festival")
		}
		return internalError(c, err)
	}
	h.invalidate(c, festivalID)
	return c.JSON(http.StatusCreated, s)
}

// ListStages handles GET /v1/festivals/:id/stages.
func (h *CatalogHandler) ListStages(c echo.Context) error {
	festivalID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid festival id")
	}
	ctx := c.Request().Context()
	if _, err := h.FestivalRepo.GetByID(ctx, festivalID); err != nil {
		return h.repoError(c, err, "festival not found")
	}
	items, err := h.StageRepo.ListByFestival(ctx, festivalID)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListStagePerformances handles GET /v1/stages/:id/performances ordered by
// start time.  Cancelled performances are listed with ?includeCancelled=true.
func (h *CatalogHandler) ListStagePerformances(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid stage id")
	}
	includeCancelled, msg := parseIncludeCancelled(c)
	if msg != "" {
		return badRequest(c, msg)
	}
	ctx := c.Request().Context()
	if _, err := h.StageRepo.GetByID(ctx, id); err != nil {
		return h.repoError(c, err, "stage not found")
	}
	items, err := h.PerformanceRepo.ListByStage(ctx, id, includeCancelled)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// DeleteStage handles DELETE /v1/admin/stages/:id.  Stages that still host
// performances, cancelled ones included, cannot be deleted.
func (h *CatalogHandler) DeleteStage(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid stage id")
	}
	festivalID, err := h.StageRepo.Delete(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, codeConflict, "stage still has performances")
		}
		return h.repoError(c, err, "stage not found")
	}
	h.invalidate(c, festivalID)
	return c.NoContent(http.StatusNoContent)
}

// ---- Artists ----

// CreateArtist handles POST /v1/admin/artists.
func (h *CatalogHandler) CreateArtist(c echo.Context) error {
	var body struct {
		Name     string            `json:"name"`
		Genre    *string           `json:"genre"`
		Bio      *string           `json:"bio"`
		ImageURL *string           `json:"imageUrl"`
		Links    map[string]string `json:"links"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return badRequest(c, "name is required")
	}
	a := &model.Artist{
		Name:     name,
		Genre:    optionalString(body.Genre),
		Bio:      optionalString(body.Bio),
		ImageURL: optionalString(body.ImageURL),
		Links:    body.Links,
	}
	if err := h.ArtistRepo.Create(c.Request().Context(), a); err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

// ListArtists handles GET /v1/artists.
func (h *CatalogHandler) ListArtists(c echo.Context) error {
	items, err := h.ArtistRepo.List(c.Request().Context())
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetArtist handles GET /v1/artists/:id.
func (h *CatalogHandler) GetArtist(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid artist id")
	}
	a, err := h.ArtistRepo.GetByID(c.Request().Context(), id)
	if err != nil {
		return h.repoError(c, err, "artist not found")
	}
	return c.JSON(http.StatusOK, a)
}

// ListArtistPerformances handles GET /v1/artists/:id/performances across all
// festivals.  Cancelled performances are listed with ?includeCancelled=true.
func (h *CatalogHandler) ListArtistPerformances(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid artist id")
	}
	includeCancelled, msg := parseIncludeCancelled(c)
	if msg != "" {
		return badRequest(c, msg)
	}
	ctx := c.Request().Context()
	if _, err := h.ArtistRepo.GetByID(ctx, id); err != nil {
		return h.repoError(c, err, "artist not found")
	}
	items, err := h.PerformanceRepo.ListByArtist(ctx, id, includeCancelled)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// DeleteArtist handles DELETE /v1/admin/artists/:id.
func (h *CatalogHandler) DeleteArtist(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid artist id")
	}
	if err := h.ArtistRepo.Delete(c.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, codeConflict, "artist still has performances")
		}
		return h.repoError(c, err, "artist not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// repoError answers repository not-found sentinels with 404 and anything
// else with 500.
func (h *CatalogHandler) repoError(c echo.Context, err error, notFound string) error {
	switch {
	case errors.Is(err, repository.ErrFestivalNotFound),
		errors.Is(err, repository.ErrStageNotFound),
		errors.Is(err, repository.ErrArtistNotFound):
		return fail(c, http.StatusNotFound, codeNotFound, notFound)
	}
	return internalError(c, err)
}

func (h *CatalogHandler) invalidate(c echo.Context, festivalID uint64) {
	if h.Cache == nil {
		return
	}
	ctx := context.WithoutCancel(c.Request().Context())
	if err := h.Cache.Invalidate(ctx, festivalID); err != nil {
		logging.FromContext(ctx).Warn("cache invalidation failed", "festival_id", festivalID, "error", err)
	}
}

func parseIncludeCancelled(c echo.Context) (bool, string) {
	raw := c.QueryParam("includeCancelled")
	if raw == "" {
		return false, ""
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, "includeCancelled must be true or false"
	}
	return v, ""
}

// slugify lower-cases s and joins runs of letters and digits with dashes.
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return b.String()
}
