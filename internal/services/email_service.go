package services

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"

	"github.com/resend/resend-go/v2"
	"github.com/sjperalta/fintera-matching-api/internal/config"
	"github.com/sjperalta/fintera-matching-api/internal/models"
	"github.com/sjperalta/fintera-matching-api/pkg/logger"
)

//go:embed templates/email/*.html
var emailTemplates embed.FS

type EmailService struct {
	config       *config.Config
	resendClient *resend.Client
}

func NewEmailService(cfg *config.Config) *EmailService {
	client := resend.NewClient(cfg.ResendAPIKey)
	return &EmailService{
		config:       cfg,
		resendClient: client,
	}
}

// Helper function to safely get string from pointer
func getStringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// checkEmailPreconditions reports whether an email may be sent to user.
// A false result with a nil error means sending is disabled.
func (s *EmailService) checkEmailPreconditions(user *models.User, operation string) (bool, error) {
	if !s.config.EnableEmailNotifications {
		logger.Debug("email notifications disabled", "operation", operation)
		return false, nil
	}
	if s.config.ResendAPIKey == "" {
		return false, fmt.Errorf("cannot send %s: RESEND_API_KEY is not set", operation)
	}
	if user == nil || user.Email == "" {
		return false, errors.New("email address is empty")
	}
	return true, nil
}

func (s *EmailService) send(user *models.User, operation, subject, templateName string, data interface{}) error {
	ok, err := s.checkEmailPreconditions(user, operation)
	if !ok {
		return err
	}

	body, err := s.renderTemplate(templateName, data)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    s.config.FromEmail,
		To:      []string{user.Email},
		Subject: subject,
		Html:    body,
	}
	if _, err := s.resendClient.Emails.Send(params); err != nil {
		logger.Error("failed to send email", "to", user.Email, "subject", subject, "error", err)
		return err
	}

	logger.Info("email sent", "to", user.Email, "subject", subject)
	return nil
}

// SendWelcome greets a newly placed member
func (s *EmailService) SendWelcome(ctx context.Context, user *models.User, parent *models.User) error {
	data := struct {
		Name       string
		Leg        models.Leg
		ParentName string
		AppURL     string
	}{
		Name:       user.FullName,
		Leg:        user.PlacementLeg(),
		ParentName: parent.FullName,
		AppURL:     s.config.AppURL,
	}
	return s.send(user, "welcome email", "Welcome to Fintera", "welcome.html", data)
}

// SendIncomeStatusChanged tells the beneficiary about a lifecycle transition
func (s *EmailService) SendIncomeStatusChanged(ctx context.Context, user *models.User, record *models.IncomeRecord) error {
	data := struct {
		Name          string
		RecordID      uint
		IncomeType    string
		Amount        string
		Status        models.IncomeStatus
		Reason        string
		TransactionID string
		PaymentMode   string
		AppURL        string
	}{
		Name:       user.FullName,
		RecordID:   record.ID,
		IncomeType: incomeTypeLabel(record.IncomeType),
		Amount:     record.IncomeAmount.StringFixed(2),
		Status:     record.Status,
		Reason:     getStringValue(record.RejectionReason),
		AppURL:     s.config.AppURL,
	}
	if details := record.PaymentDetails(); details != nil {
		data.Amount = details.PaidAmount.StringFixed(2)
		data.TransactionID = getStringValue(details.TransactionID)
		data.PaymentMode = getStringValue(details.PaymentMode)
	}

	subject := fmt.Sprintf("Your income #%d is %s", record.ID, record.Status)
	return s.send(user, "income status email", subject, "income_status.html", data)
}

type eligibleLine struct {
	ID     uint
	Type   string
	Amount string
}

// SendIncomeEligible lists the records of user whose approval lock expired
func (s *EmailService) SendIncomeEligible(ctx context.Context, user *models.User, records []models.IncomeRecord) error {
	lines := make([]eligibleLine, 0, len(records))
	for _, r := range records {
		lines = append(lines, eligibleLine{ID: r.ID, Type: incomeTypeLabel(r.IncomeType), Amount: r.IncomeAmount.StringFixed(2)})
	}
	data := struct {
		Name    string
		Count   int
		Records []eligibleLine
		AppURL  string
	}{
		Name:    user.FullName,
		Count:   len(records),
		Records: lines,
		AppURL:  s.config.AppURL,
	}
	return s.send(user, "income eligible email", "Income ready for approval", "income_eligible.html", data)
}

func incomeTypeLabel(t models.IncomeType) string {
	if t == models.IncomeTypeMatchingBonus {
		return "matching bonus"
	}
	return "personal sale"
}

func (s *EmailService) renderTemplate(name string, data interface{}) (string, error) {
	tmpl, err := template.ParseFS(emailTemplates, "templates/email/"+name)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return buf.String(), nil
}
