package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/TheBrightLayer/ChirpWhirpServer/database"
	"github.com/TheBrightLayer/ChirpWhirpServer/errs"
	"github.com/TheBrightLayer/ChirpWhirpServer/models"
	"github.com/TheBrightLayer/ChirpWhirpServer/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

const (
	defaultPageLimit  = 10
	maxPageLimit      = 100
	maxBlogBodyBytes  = 20 << 20
	multipartMemBytes = 10 << 20
)

type blogHandler struct {
	responder  Responder
	logger     zerolog.Logger
	blogRepo   *database.BlogRepo
	translator *services.BlogTranslator
	covers     services.CoverStore
}

func newBlogHandler(blogRepo *database.BlogRepo, translator *services.BlogTranslator, covers services.CoverStore) blogHandler {
	logger := log.With().Str("handlerName", "blogHandler").Logger()

	if covers == nil {
		covers = services.DataURICoverStore{}
	}

	return blogHandler{
		responder:  NewResponder(logger),
		logger:     logger,
		blogRepo:   blogRepo,
		translator: translator,
		covers:     covers,
	}
}

// blogInput is the body of a create request, JSON or multipart.
type blogInput struct {
	Title              string              `json:"title"`
	Content            string              `json:"content"`
	Category           string              `json:"category"`
	MainImage          *string             `json:"mainImage"`
	Author             *string             `json:"author"`
	AuthorProfileImage *string             `json:"authorProfileImage"`
	MetaTitle          string              `json:"metaTitle"`
	MetaDesc           string              `json:"metaDesc"`
	Tags               services.StringList `json:"tags"`
}

// blogPatch is the body of an update request. Nil fields keep their stored
// value. The slug is never taken from the client.
type blogPatch struct {
	Title              *string              `json:"title"`
	Content            *string              `json:"content"`
	Category           *string              `json:"category"`
	MainImage          *string              `json:"mainImage"`
	Author             *string              `json:"author"`
	AuthorProfileImage *string              `json:"authorProfileImage"`
	MetaTitle          *string              `json:"metaTitle"`
	MetaDesc           *string              `json:"metaDesc"`
	Tags               *services.StringList `json:"tags"`
}

// getBlogs returns one page of blogs
// @Summary List blogs
// @Tags Blogs
// @Produce json
// @Param category query string false "Exact category"
// @Param page query int false "1-based page" default(1)
// @Param limit query int false "Page size, at most 100" default(10)
// @Param lang query string false "Language to translate into"
// @Success 200 {object} BlogListResponse
// @Failure 500 {object} ErrorResponse
// @Router /blogs [get]
func (h blogHandler) getBlogs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		page := positiveInt(query.Get("page"), 1)
		limit := min(positiveInt(query.Get("limit"), defaultPageLimit), maxPageLimit)

		blogs, total, err := h.blogRepo.FindPage(r.Context(), strings.TrimSpace(query.Get("category")), page, limit)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		if h.translator != nil {
			if target, ok := h.translator.Target(query.Get("lang")); ok {
				blogs = services.Blogs(h.translator.TranslateList(r.Context(), blogs, target))
			}
		}

		h.responder.WriteJSON(w, BlogListResponse{
			Blogs:      blogs,
			Total:      total,
			Page:       page,
			TotalPages: int((total + int64(limit) - 1) / int64(limit)),
		})
	}
}

// getBlog returns a single blog by slug
// @Summary Get blog
// @Tags Blogs
// @Produce json
// @Param slug path string true "Blog slug"
// @Param lang query string false "Language to translate into"
// @Success 200 {object} models.Blog
// @Failure 404 {object} ErrorResponse "Blog not found"
// @Router /blogs/{slug} [get]
func (h blogHandler) getBlog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		blog, err := h.blogRepo.FindBySlug(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		if h.translator != nil {
			if target, ok := h.translator.Target(r.URL.Query().Get("lang")); ok {
				blog = h.translator.TranslateOne(r.Context(), blog, target, true).Blog
			}
		}

		h.responder.WriteJSON(w, blog)
	}
}

// createBlog stores a new blog
// @Summary Create blog
// @Description Accepts JSON or multipart/form-data with an optional `cover` image. Slug, metaTitle and metaDesc are derived when missing.
// @Tags Blogs
// @Accept json,mpfd
// @Produce json
// @Success 201 {object} models.Blog
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /blogs [post]
func (h blogHandler) createBlog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBlogBodyBytes)

		var (
			input blogInput
			cover *coverUpload
			err   error
		)
		if isMultipart(r) {
			input, cover, err = readMultipartBlog(r)
		} else {
			err = decodeJSON(r.Body, &input)
		}
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		blog := &models.Blog{
			Title:              strings.TrimSpace(input.Title),
			Content:            input.Content,
			Category:           strings.TrimSpace(input.Category),
			MainImage:          nonEmpty(input.MainImage),
			AuthorProfileImage: nonEmpty(input.AuthorProfileImage),
			MetaTitle:          strings.TrimSpace(input.MetaTitle),
			MetaDesc:           strings.TrimSpace(input.MetaDesc),
			Tags:               datatypes.JSONSlice[string](services.NormalizeStrings(input.Tags)),
		}
		if blog.AuthorID, err = parseAuthor(input.Author); err != nil {
			h.responder.WriteError(w, err)
			return
		}
		if err := validateBlog(blog); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		if err := h.derive(r.Context(), blog, true); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		var storedCover string
		if cover != nil {
			storedCover, err = h.covers.Store(r.Context(), cover.filename, cover.contentType, cover.data)
			if err != nil {
				h.responder.WriteError(w, errs.NewInternalErrorWithCause("Failed to store cover image", err))
				return
			}
			blog.MainImage = &storedCover
		}

		if err := h.blogRepo.Add(r.Context(), blog); err != nil {
			if storedCover != "" {
				if rmErr := h.covers.Remove(r.Context(), storedCover); rmErr != nil {
					h.logger.Warn().Err(rmErr).Str("cover", storedCover).Msg("Failed to remove orphaned cover")
				}
			}
			h.responder.WriteError(w, err)
			return
		}

		h.logger.Info().Str("slug", blog.Slug).Str("category", blog.Category).Msg("Blog created")
		h.responder.WriteJSONStatus(w, http.StatusCreated, blog)
	}
}

// updateBlog merges the given fields into an existing blog
// @Summary Update blog
// @Description Partial update. The slug is regenerated only when the title changes.
// @Tags Blogs
// @Accept json
// @Produce json
// @Param id path string true "Blog ID" format(uuid)
// @Success 200 {object} models.Blog
// @Failure 404 {object} ErrorResponse "Blog not found"
// @Failure 500 {object} ErrorResponse
// @Router /blogs/{id} [put]
func (h blogHandler) updateBlog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			// No blog can live under an id that does not parse.
			h.responder.WriteError(w, errs.NewBlogNotFoundError())
			return
		}

		blog, err := h.blogRepo.FindByID(r.Context(), id)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBlogBodyBytes)
		var patch blogPatch
		if err := decodeJSON(r.Body, &patch); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		titleChanged, err := applyPatch(blog, patch)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		if err := validateBlog(blog); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		if err := h.derive(r.Context(), blog, titleChanged); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		if err := h.blogRepo.Update(r.Context(), blog); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.responder.WriteJSON(w, blog)
	}
}

// deleteBlog removes a blog by slug
// @Summary Delete blog
// @Tags Blogs
// @Produce json
// @Param slug path string true "Blog slug"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse "Blog not found"
// @Router /blogs/{slug} [delete]
func (h blogHandler) deleteBlog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		if err := h.blogRepo.DeleteBySlug(r.Context(), slug); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.logger.Info().Str("slug", slug).Msg("Blog deleted")
		h.responder.WriteJSON(w, MessageResponse{Message: "Blog deleted successfully"})
	}
}

// derive fills in slug, metaTitle and metaDesc before a write.
func (h blogHandler) derive(ctx context.Context, blog *models.Blog, titleChanged bool) error {
	lookup := func(ctx context.Context, slug string) (bool, error) {
		return h.blogRepo.SlugExists(ctx, slug, blog.ID)
	}

	fields, err := services.DeriveSlugAndMeta(ctx, services.BlogFields{
		Title:     blog.Title,
		Content:   blog.Content,
		Slug:      blog.Slug,
		MetaTitle: blog.MetaTitle,
		MetaDesc:  blog.MetaDesc,
	}, titleChanged, lookup)
	if err != nil {
		return err
	}

	blog.Slug = fields.Slug
	blog.MetaTitle = fields.MetaTitle
	blog.MetaDesc = fields.MetaDesc
	return nil
}

// coverUpload is a cover file read from a multipart request. It is stored
// only after the blog passed validation.
type coverUpload struct {
	filename    string
	contentType string
	data        []byte
}

func readMultipartBlog(r *http.Request) (blogInput, *coverUpload, error) {
	if err := r.ParseMultipartForm(multipartMemBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return blogInput{}, nil, errs.NewMaxBodySizeExceededError(maxErr.Limit)
		}
		return blogInput{}, nil, errs.NewMalformedPayloadError("multipart", err)
	}

	input := blogInput{
		Title:     r.FormValue("title"),
		Content:   r.FormValue("content"),
		Category:  r.FormValue("category"),
		MetaTitle: r.FormValue("metaTitle"),
		MetaDesc:  r.FormValue("metaDesc"),
		Tags:      parseTagsField(r.FormValue("tags")),
	}
	for key, dst := range map[string]**string{
		"mainImage":          &input.MainImage,
		"author":             &input.Author,
		"authorProfileImage": &input.AuthorProfileImage,
	} {
		if v := r.FormValue(key); v != "" {
			*dst = &v
		}
	}

	file, header, err := r.FormFile("cover")
	if errors.Is(err, http.ErrMissingFile) {
		return input, nil, nil
	}
	if err != nil {
		return blogInput{}, nil, errs.NewMalformedPayloadError("multipart", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return blogInput{}, nil, errs.NewMalformedPayloadError("multipart", err)
	}
	if len(data) == 0 {
		return input, nil, nil
	}
	return input, &coverUpload{
		filename:    header.Filename,
		contentType: header.Header.Get("Content-Type"),
		data:        data,
	}, nil
}

// applyPatch merges patch into blog and reports whether the title changed.
func applyPatch(blog *models.Blog, patch blogPatch) (bool, error) {
	titleChanged := false
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		titleChanged = title != blog.Title
		blog.Title = title
	}
	if patch.Content != nil {
		blog.Content = *patch.Content
	}
	if patch.Category != nil {
		blog.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.MainImage != nil {
		blog.MainImage = nonEmpty(patch.MainImage)
	}
	if patch.AuthorProfileImage != nil {
		blog.AuthorProfileImage = nonEmpty(patch.AuthorProfileImage)
	}
	if patch.Author != nil {
		author, err := parseAuthor(patch.Author)
		if err != nil {
			return false, err
		}
		blog.AuthorID = author
	}
	if patch.MetaTitle != nil {
		blog.MetaTitle = strings.TrimSpace(*patch.MetaTitle)
	}
	if patch.MetaDesc != nil {
		blog.MetaDesc = strings.TrimSpace(*patch.MetaDesc)
	}
	if patch.Tags != nil {
		blog.Tags = datatypes.JSONSlice[string](services.NormalizeStrings(*patch.Tags))
	}
	return titleChanged, nil
}

func validateBlog(blog *models.Blog) error {
	switch {
	case blog.Title == "":
		return errs.NewValidationError("title", "title is required")
	case strings.TrimSpace(blog.Content) == "":
		return errs.NewValidationError("content", "content is required")
	case blog.Category == "":
		return errs.NewValidationError("category", "category is required")
	}
	return nil
}

func parseAuthor(raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, errs.NewValidationError("author", "author must be a valid id")
	}
	return &id, nil
}

// parseTagsField accepts a JSON array, a JSON string or a comma-separated
// list, as sent in multipart forms.
func parseTagsField(value string) services.StringList {
	value = strings.TrimSpace(value)
	if value == "" {
		return services.StringList{}
	}
	if json.Valid([]byte(value)) {
		return services.NormalizeList(json.RawMessage(value))
	}
	quoted, _ := json.Marshal(value)
	return services.NormalizeList(quoted)
}

func decodeJSON(body io.Reader, dst any) error {
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errs.NewMaxBodySizeExceededError(maxErr.Limit)
		}
		return errs.NewInvalidJSONError(err)
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
