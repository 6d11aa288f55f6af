package services

import (
	"context"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	localAttachmentType   = "application/pdf"
	defaultAttachmentType = "application/octet-stream"
)

var remoteAttachmentPattern = regexp.MustCompile(`(?i)^https?://`)

// ResolvedAttachment is an attachment ready for dispatch. Source is an
// absolute file path for local attachments and a URL for remote ones.
type ResolvedAttachment struct {
	Filename    string `json:"filename"`
	Source      string `json:"source"`
	Remote      bool   `json:"remote"`
	ContentType string `json:"contentType"`
}

// AttachmentResolver maps attachment identifiers from a request onto files
// below Root or remote URLs.
type AttachmentResolver struct {
	Root   string
	logger zerolog.Logger
}

func NewAttachmentResolver(root string) *AttachmentResolver {
	if root == "" {
		root = "files"
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &AttachmentResolver{
		Root:   root,
		logger: log.With().Str("service", "attachments").Logger(),
	}
}

// Resolve never fails. Identifiers that cannot be resolved are dropped and
// logged at warn level.
func (r *AttachmentResolver) Resolve(ctx context.Context, ids []string) []ResolvedAttachment {
	resolved := make([]ResolvedAttachment, 0, len(ids))
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}

		id = strings.TrimSpace(id)
		if id == "" {
			r.logger.Warn().Msg("Skipping empty attachment identifier")
			continue
		}

		if remoteAttachmentPattern.MatchString(id) {
			att, ok := resolveRemote(id)
			if !ok {
				r.logger.Warn().Str("attachment", id).Msg("Skipping malformed attachment URL")
				continue
			}
			resolved = append(resolved, att)
			continue
		}

		att, reason := r.resolveLocal(id)
		if reason != "" {
			r.logger.Warn().Str("attachment", id).Str("reason", reason).Msg("Skipping attachment")
			continue
		}
		resolved = append(resolved, att)
	}
	return resolved
}

func resolveRemote(raw string) (ResolvedAttachment, bool) {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return ResolvedAttachment{}, false
	}

	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		name = "attachment"
	}

	contentType := mime.TypeByExtension(strings.ToLower(path.Ext(name)))
	if contentType == "" {
		contentType = defaultAttachmentType
	}

	return ResolvedAttachment{
		Filename:    name,
		Source:      u.String(),
		Remote:      true,
		ContentType: contentType,
	}, true
}

func (r *AttachmentResolver) resolveLocal(name string) (ResolvedAttachment, string) {
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) || filepath.IsAbs(name) {
		return ResolvedAttachment{}, "path escapes attachment directory"
	}

	full := filepath.Join(r.Root, name)
	info, err := os.Stat(full)
	if err != nil {
		return ResolvedAttachment{}, "file not found"
	}
	if !info.Mode().IsRegular() {
		return ResolvedAttachment{}, "not a regular file"
	}

	return ResolvedAttachment{
		Filename:    name,
		Source:      full,
		ContentType: localAttachmentType,
	}, ""
}
