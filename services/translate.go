package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/TheBrightLayer/ChirpWhirpServer/config"
	"github.com/TheBrightLayer/ChirpWhirpServer/errs"
	"github.com/TheBrightLayer/ChirpWhirpServer/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Translator translates a single piece of text between two languages.
type Translator interface {
	Translate(ctx context.Context, text string, source, target language.Tag) (string, error)
}

// LLMTranslator asks an OpenAI-compatible chat model for translations.
type LLMTranslator struct {
	llm llms.Model
}

// NewLLMTranslatorFromConfig returns nil when OPENAI_API_KEY is not set.
func NewLLMTranslatorFromConfig(cfg map[string]string) (*LLMTranslator, error) {
	key := config.GetString(cfg, "OPENAI_API_KEY", "")
	if key == "" {
		return nil, nil
	}

	opts := []openai.Option{
		openai.WithToken(key),
		openai.WithModel(config.GetString(cfg, "OPENAI_MODEL", "gpt-4o-mini")),
	}
	if baseURL := config.GetString(cfg, "OPENAI_BASE_URL", ""); baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create translation model: %w", err)
	}
	return &LLMTranslator{llm: llm}, nil
}

func (t *LLMTranslator) Translate(ctx context.Context, text string, source, target language.Tag) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	prompt := fmt.Sprintf(
		"Translate the following text from %s to %s. Keep any HTML markup unchanged and reply with the translation only.\n\n%s",
		languageName(source), languageName(target), text,
	)
	out, err := llms.GenerateFromSinglePrompt(ctx, t.llm, prompt, llms.WithTemperature(0))
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errors.New("empty translation")
	}
	return out, nil
}

func languageName(tag language.Tag) string {
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return tag.String()
}

// TranslationOutcome is the result of translating one blog. On fallback Blog
// is the untouched original and Err says why.
type TranslationOutcome struct {
	Blog       *models.Blog
	Translated bool
	Err        error
}

// BlogTranslator applies best-effort translation to blogs. It never turns a
// fetch into a failure.
type BlogTranslator struct {
	translator  Translator
	defaultLang language.Tag
	supported   map[language.Base]bool
	concurrency int
	logger      zerolog.Logger
}

// NewBlogTranslator reads DEFAULT_LANGUAGE, SUPPORTED_LANGUAGES and
// TRANSLATION_CONCURRENCY. translator may be nil, in which case every
// translation falls back.
func NewBlogTranslator(translator Translator, cfg map[string]string) *BlogTranslator {
	defaultLang, err := language.Parse(config.GetString(cfg, "DEFAULT_LANGUAGE", "en"))
	if err != nil {
		defaultLang = language.English
	}

	supported := make(map[language.Base]bool)
	for _, code := range config.GetList(cfg, "SUPPORTED_LANGUAGES", []string{"en", "hi"}) {
		tag, err := language.Parse(code)
		if err != nil {
			log.Warn().Str("language", code).Msg("Ignoring unsupported language code")
			continue
		}
		base, _ := tag.Base()
		supported[base] = true
	}

	concurrency := config.GetInt(cfg, "TRANSLATION_CONCURRENCY", 4)
	if concurrency < 1 {
		concurrency = 1
	}

	return &BlogTranslator{
		translator:  translator,
		defaultLang: defaultLang,
		supported:   supported,
		concurrency: concurrency,
		logger:      log.With().Str("service", "blogTranslator").Logger(),
	}
}

// Target resolves a lang query value. It reports false for empty, invalid,
// unsupported and default-language values.
func (t *BlogTranslator) Target(lang string) (language.Tag, bool) {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return language.Und, false
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return language.Und, false
	}

	base, _ := tag.Base()
	defaultBase, _ := t.defaultLang.Base()
	if base == defaultBase || !t.supported[base] {
		return language.Und, false
	}
	return language.Make(base.String()), true
}

// TranslateOne translates title, content and SEO fields, plus category when
// withCategory is set. Any field failure falls back for the whole blog.
func (t *BlogTranslator) TranslateOne(ctx context.Context, blog *models.Blog, target language.Tag, withCategory bool) TranslationOutcome {
	if t.translator == nil {
		return t.fallback(blog, errors.New("no translator configured"))
	}

	translated := *blog
	fields := []*string{&translated.Title, &translated.Content, &translated.MetaTitle, &translated.MetaDesc}
	if withCategory {
		fields = append(fields, &translated.Category)
	}

	for _, field := range fields {
		if *field == "" {
			continue
		}
		out, err := t.translator.Translate(ctx, *field, t.defaultLang, target)
		if err != nil {
			return t.fallback(blog, err)
		}
		*field = out
	}

	return TranslationOutcome{Blog: &translated, Translated: true}
}

// TranslateList translates every blog concurrently and waits for all of them.
// Outcomes keep the order of blogs.
func (t *BlogTranslator) TranslateList(ctx context.Context, blogs []*models.Blog, target language.Tag) []TranslationOutcome {
	outcomes := make([]TranslationOutcome, len(blogs))

	var g errgroup.Group
	g.SetLimit(t.concurrency)
	for i, blog := range blogs {
		g.Go(func() error {
			outcomes[i] = t.TranslateOne(ctx, blog, target, false)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (t *BlogTranslator) fallback(blog *models.Blog, cause error) TranslationOutcome {
	err := fmt.Errorf("%w: %v", errs.ErrTranslationDegraded, cause)
	t.logger.Warn().Err(err).Str("slug", blog.Slug).Msg("Error translating blog")
	return TranslationOutcome{Blog: blog, Err: err}
}

// Blogs unwraps outcomes to the blogs to return, translated or original.
func Blogs(outcomes []TranslationOutcome) []*models.Blog {
	out := make([]*models.Blog, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Blog
	}
	return out
}
