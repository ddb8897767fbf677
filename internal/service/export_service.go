package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ArbeitEmployee/studyabroad-api/internal/models"
	"github.com/ArbeitEmployee/studyabroad-api/pkg/export"
	"github.com/ArbeitEmployee/studyabroad-api/pkg/storage"
)

type caseLister interface {
	List(ctx context.Context, filter models.VisaFilter) ([]models.VisaRequestDetail, int, error)
}

type consultationLister interface {
	List(ctx context.Context, filter models.ConsultationFilter) ([]models.ConsultationDetail, int, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	cases         caseLister
	consultations consultationLister
	storage       fileStorage
	csv           csvRenderer
	pdf           pdfRenderer
	signer        *storage.SignedURLSigner
	logger        *zap.Logger
	cfg           ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(cases caseLister, consultations consultationLister, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		cases:         cases,
		consultations: consultations,
		storage:       storage,
		csv:           csv,
		pdf:           pdf,
		signer:        signer,
		logger:        logger,
		cfg:           cfg,
	}
}

// Generate builds the dataset according to the job definition and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/reports/download/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s.%s", strings.ToLower(string(job.Type)), timestamp, job.Params.Format)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeVisaCases:
		return s.buildVisaCaseDataset(ctx, job.Params)
	case models.ReportTypeConsultations:
		return s.buildConsultationDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildVisaCaseDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	filter := models.VisaFilter{
		Status:             models.VisaStatus(params.Status),
		VisaType:           models.VisaType(params.VisaType),
		DestinationCountry: params.DestinationCountry,
		ConsultantID:       params.ConsultantID,
		PageSize:           100,
	}

	dataRows := make([]map[string]string, 0)
	for page := 1; ; page++ {
		filter.Page = page
		rows, total, err := s.cases.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", err
		}
		for _, row := range rows {
			consultant := ""
			if row.ConsultantName != nil {
				consultant = *row.ConsultantName
			}
			dataRows = append(dataRows, map[string]string{
				"Case ID":      row.ID,
				"Student":      row.StudentName,
				"Destination":  row.DestinationCountry,
				"Visa Type":    string(row.VisaType),
				"Status":       string(row.Status),
				"Current Step": fmt.Sprintf("%d", row.CurrentStep),
				"Consultant":   consultant,
				"Created At":   row.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		if len(dataRows) >= total || len(rows) == 0 {
			break
		}
	}

	dataset := export.Dataset{
		Headers: []string{"Case ID", "Student", "Destination", "Visa Type", "Status", "Current Step", "Consultant", "Created At"},
		Rows:    dataRows,
	}
	return dataset, "Visa Case Report", nil
}

func (s *ExportService) buildConsultationDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	filter := models.ConsultationFilter{
		Status:     models.ConsultationStatus(params.Status),
		EmployeeID: params.ConsultantID,
		PageSize:   100,
	}

	dataRows := make([]map[string]string, 0)
	for page := 1; ; page++ {
		filter.Page = page
		rows, total, err := s.consultations.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", err
		}
		for _, row := range rows {
			employee := ""
			if row.EmployeeName != nil {
				employee = *row.EmployeeName
			}
			scheduled := ""
			if row.ScheduledAt != nil {
				scheduled = row.ScheduledAt.UTC().Format(time.RFC3339)
			}
			dataRows = append(dataRows, map[string]string{
				"Consultation ID": row.ID,
				"Student":         row.StudentName,
				"Topic":           row.Topic,
				"Status":          string(row.Status),
				"Employee":        employee,
				"Scheduled At":    scheduled,
				"Created At":      row.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		if len(dataRows) >= total || len(rows) == 0 {
			break
		}
	}

	dataset := export.Dataset{
		Headers: []string{"Consultation ID", "Student", "Topic", "Status", "Employee", "Scheduled At", "Created At"},
		Rows:    dataRows,
	}
	return dataset, "Consultation Report", nil
}
