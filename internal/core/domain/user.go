package domain

import (
	"net/mail"
	"strings"

	apperrors "github.com/lorrc/armesa-dashboard/internal/core/errors"
)

// Role is the panel role of a dashboard user.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleSupport Role = "support"
	RoleViewer  Role = "viewer"
)

// IsValid reports whether the role is known
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleSupport, RoleViewer:
		return true
	}
	return false
}

// CanManageUsers reports whether the role may manage panel users and settings.
func (r Role) CanManageUsers() bool {
	return r == RoleAdmin
}

// CanWorkTickets reports whether the role may claim, close, escalate and annotate tickets.
func (r Role) CanWorkTickets() bool {
	return r == RoleAdmin || r == RoleSupport
}

// User validation constants
const (
	MinUsernameLength = 3
	MaxUsernameLength = 64
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// PanelUser is a dashboard login as listed by the backend.
type PanelUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      Role   `json:"role"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CreateUserParams holds the input for creating a panel user
type CreateUserParams struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// Validate validates user creation parameters. An empty role defaults to viewer.
func (p *CreateUserParams) Validate() error {
	errs := apperrors.NewValidationErrors()

	p.Username = strings.TrimSpace(p.Username)
	if p.Role == "" {
		p.Role = RoleViewer
	}

	switch {
	case p.Username == "":
		errs.Add("username", "Username is required")
	case len(p.Username) < MinUsernameLength || len(p.Username) > MaxUsernameLength:
		errs.Add("username", "Username must be between 3 and 64 characters")
	}

	switch {
	case p.Password == "":
		errs.Add("password", "Password is required")
	case len(p.Password) < MinPasswordLength:
		errs.Add("password", "Password must be at least 8 characters")
	case len(p.Password) > MaxPasswordLength:
		errs.Add("password", "Password must be at most 128 characters")
	}

	if !p.Role.IsValid() {
		errs.Add("role", "Must be one of: admin, support, viewer")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Settings are the panel-wide SLA and notification settings.
type Settings struct {
	SLAFirstResponse  int    `json:"sla_first_response"`
	SLAResolution     int    `json:"sla_resolution"`
	AutoCloseHours    int    `json:"auto_close_hours"`
	MaxTicketsPerUser int    `json:"max_tickets_per_user"`
	NotificationEmail string `json:"notification_email"`
	DiscordWebhook    string `json:"discord_webhook"`
}

// DefaultSettings returns the values shown before the backend answers.
func DefaultSettings() Settings {
	return Settings{
		SLAFirstResponse:  30,
		SLAResolution:     240,
		AutoCloseHours:    48,
		MaxTicketsPerUser: 3,
	}
}

const discordWebhookPrefix = "https://discord.com/api/webhooks/"

// Validate validates the settings
func (s Settings) Validate() error {
	errs := apperrors.NewValidationErrors()

	if s.SLAFirstResponse <= 0 {
		errs.Add("sla_first_response", "Must be a positive number of minutes")
	}
	if s.SLAResolution <= 0 {
		errs.Add("sla_resolution", "Must be a positive number of minutes")
	} else if s.SLAFirstResponse > s.SLAResolution {
		errs.Add("sla_resolution", "Must not be shorter than the first response target")
	}
	if s.AutoCloseHours <= 0 {
		errs.Add("auto_close_hours", "Must be a positive number of hours")
	}
	if s.MaxTicketsPerUser <= 0 {
		errs.Add("max_tickets_per_user", "Must be at least 1")
	}
	if s.NotificationEmail != "" {
		if _, err := mail.ParseAddress(s.NotificationEmail); err != nil {
			errs.Add("notification_email", "Must be a valid email address")
		}
	}
	if s.DiscordWebhook != "" && !strings.HasPrefix(s.DiscordWebhook, discordWebhookPrefix) {
		errs.Add("discord_webhook", "Must be a Discord webhook URL")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
