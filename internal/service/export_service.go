package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/genius-academy-api/internal/models"
	appErrors "github.com/noah-isme/genius-academy-api/pkg/errors"
	"github.com/noah-isme/genius-academy-api/pkg/export"
)

type rosterAccountSource interface {
	ListByRole(ctx context.Context, role models.RoleKind) ([]models.Account, error)
}

type studentRoster interface {
	ListAll(ctx context.Context) ([]models.Student, error)
}

type parentRoster interface {
	ListAll(ctx context.Context) ([]models.Parent, error)
}

type teacherRoster interface {
	ListAll(ctx context.Context) ([]models.Teacher, error)
}

type adminRoster interface {
	ListAll(ctx context.Context) ([]models.AdminRole, error)
}

// RosterSources groups the repositories an export reads from.
type RosterSources struct {
	Accounts rosterAccountSource
	Students studentRoster
	Parents  parentRoster
	Teachers teacherRoster
	Admins   adminRoster
}

// ExportResult is a rendered roster ready to be streamed.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
	Rows        int
}

// ExportService renders account rosters per role.
type ExportService struct {
	sources  RosterSources
	registry *export.Registry
	logger   *zap.Logger
	now      func() time.Time
}

var baseRosterHeaders = []string{"Username", "First Name", "Last Name", "Email", "Phone", "Gender", "Active", "Joined"}

// NewExportService constructs an ExportService. A nil registry uses the CSV, XLSX and PDF renderers.
func NewExportService(sources RosterSources, registry *export.Registry, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = export.DefaultRegistry()
	}
	return &ExportService{sources: sources, registry: registry, logger: logger, now: time.Now}
}

// Export renders the roster of kind in the requested format.
func (s *ExportService) Export(ctx context.Context, kind models.RoleKind, rawFormat string) (*ExportResult, error) {
	if !kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, err.Error())
	}
	renderer, ok := s.registry.Get(format)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedFormat, "")
	}

	dataset, err := s.buildDataset(ctx, kind)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build roster")
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}

	base := strings.ToLower(string(kind)) + "s"
	s.logger.Info("roster exported", zap.String("role", string(kind)), zap.String("format", string(format)), zap.Int("rows", len(dataset.Rows)))
	return &ExportResult{
		Filename:    export.Filename(base, format, s.now().UTC().Format("20060102")),
		ContentType: renderer.ContentType(),
		Data:        payload,
		Rows:        len(dataset.Rows),
	}, nil
}

func (s *ExportService) buildDataset(ctx context.Context, kind models.RoleKind) (export.Dataset, error) {
	accounts, err := s.sources.Accounts.ListByRole(ctx, kind)
	if err != nil {
		return export.Dataset{}, err
	}
	extraHeaders, extras, err := s.profileColumns(ctx, kind)
	if err != nil {
		return export.Dataset{}, err
	}

	headers := append(append([]string{}, baseRosterHeaders...), extraHeaders...)
	rows := make([]map[string]string, 0, len(accounts))
	for _, a := range accounts {
		row := map[string]string{
			"Username":   a.Username,
			"First Name": a.FirstName,
			"Last Name":  a.LastName,
			"Email":      a.Email,
			"Phone":      deref(a.Phone),
			"Gender":     deref(a.Gender),
			"Active":     strconv.FormatBool(a.Active),
			"Joined":     a.CreatedAt.UTC().Format("2006-01-02"),
		}
		for k, v := range extras[a.ID] {
			row[k] = v
		}
		rows = append(rows, row)
	}
	return export.Dataset{
		Title:   fmt.Sprintf("%s roster (%s)", kind.Label(), s.now().UTC().Format("2006-01-02")),
		Headers: headers,
		Rows:    rows,
	}, nil
}

// profileColumns returns the role specific columns keyed by account id.
func (s *ExportService) profileColumns(ctx context.Context, kind models.RoleKind) ([]string, map[string]map[string]string, error) {
	out := make(map[string]map[string]string)
	switch kind {
	case models.RoleStudent:
		students, err := s.sources.Students.ListAll(ctx)
		if err != nil {
			return nil, nil, err
		}
		for _, st := range students {
			out[st.AccountID] = map[string]string{"Level": derefEnum(st.Level)}
		}
		return []string{"Level"}, out, nil
	case models.RoleParent:
		parents, err := s.sources.Parents.ListAll(ctx)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range parents {
			out[p.AccountID] = map[string]string{"Relationship": derefEnum(p.Relationship), "Student": deref(p.StudentID)}
		}
		return []string{"Relationship", "Student"}, out, nil
	case models.RoleLecturer:
		teachers, err := s.sources.Teachers.ListAll(ctx)
		if err != nil {
			return nil, nil, err
		}
		for _, t := range teachers {
			out[t.AccountID] = map[string]string{
				"Speciality":  t.Speciality,
				"Diploma":     deref(t.Diploma),
				"Available":   strconv.FormatBool(t.Available),
				"Credentials": string(t.CredentialStatus),
			}
		}
		return []string{"Speciality", "Diploma", "Available", "Credentials"}, out, nil
	case models.RoleAdmin:
		admins, err := s.sources.Admins.ListAll(ctx)
		if err != nil {
			return nil, nil, err
		}
		for _, a := range admins {
			out[a.AccountID] = map[string]string{"Admin Role": string(a.Role), "Credentials": string(a.CredentialStatus)}
		}
		return []string{"Admin Role", "Credentials"}, out, nil
	}
	return nil, out, nil
}

func derefEnum[T ~string](v *T) string {
	if v == nil {
		return ""
	}
	return string(*v)
}
