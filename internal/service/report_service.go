package service

import (
	"os"
	"path"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/tutor-billing-api/pkg/errors"
)

type reportOpener interface {
	Open(name string) (*os.File, error)
}

type linkParser interface {
	Parse(token string) (string, error)
}

// ReportService resolves signed download links to stored sweep reports.
type ReportService struct {
	store  reportOpener
	links  linkParser
	logger *zap.Logger
}

// NewReportService constructs a ReportService.
func NewReportService(store reportOpener, links linkParser, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{store: store, links: links, logger: logger}
}

// Open validates the token and returns the stored file with its download name.
// The caller closes the file.
func (s *ReportService) Open(token string) (*os.File, string, error) {
	if s == nil || s.store == nil || s.links == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "reports are disabled")
	}
	name, err := s.links.Parse(token)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired link")
	}
	file, err := s.store.Open(name)
	if err != nil {
		s.logger.Warn("report missing", zap.String("name", name), zap.Error(err))
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report not found")
	}
	return file, path.Base(name), nil
}
