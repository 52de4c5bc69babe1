package domain

// KPI holds the aggregate ticket metrics of the dashboard landing page.
type KPI struct {
	TotalTickets       int64   `json:"total_tickets"`
	OpenTickets        int64   `json:"open_tickets"`
	ClosedToday        int64   `json:"closed_today"`
	Escalated          int64   `json:"escalated"`
	SLABreached        int64   `json:"sla_breached"`
	AvgResponseTimeMin float64 `json:"avg_response_time_min"`
}

// Overview is the landing page: KPIs plus the latest tickets.
type Overview struct {
	KPI           KPI      `json:"kpi"`
	LatestTickets []Ticket `json:"latestTickets"`
}

// SLACompliance is the compliance of one bucket of tickets.
type SLACompliance struct {
	Total      int64   `json:"total"`
	Breached   int64   `json:"breached"`
	Compliance float64 `json:"compliance"`
}

// SLADay is the SLA result of one creation day.
type SLADay struct {
	Date     string `json:"date"`
	Total    int64  `json:"total"`
	Breached int64  `json:"breached"`
}

// SLAReport is the SLA analytics view.
type SLAReport struct {
	Compliance float64                  `json:"compliance"`
	Total      int64                    `json:"total"`
	Breached   int64                    `json:"breached"`
	ByPriority map[string]SLACompliance `json:"by_priority"`
	Daily      []SLADay                 `json:"daily"`
}

// SupporterStats is the per-agent performance line.
type SupporterStats struct {
	Supporter     string `json:"supporter"`
	TotalTickets  int64  `json:"total_tickets"`
	ClosedTickets int64  `json:"closed_tickets"`
	Escalations   int64  `json:"escalations"`
	SLABreaches   int64  `json:"sla_breaches"`
	Score         int64  `json:"score"`
}

// CloseRate returns closed/total in percent, 0 without tickets.
func (s SupporterStats) CloseRate() float64 {
	if s.TotalTickets == 0 {
		return 0
	}
	return float64(s.ClosedTickets) / float64(s.TotalTickets) * 100
}

// VolumePoint is the number of tickets opened and closed on one day.
type VolumePoint struct {
	Date   string `json:"date"`
	Opened int64  `json:"opened"`
	Closed int64  `json:"closed"`
}

// DistributionBucket counts tickets sharing one key (priority or type).
type DistributionBucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Analytics bundles the chart data of the analytics page.
type Analytics struct {
	Volume   []VolumePoint        `json:"volume"`
	Priority []DistributionBucket `json:"priorityDistribution"`
	Types    []DistributionBucket `json:"typeDistribution"`
}

// AuditEntry is one line of the backend audit log.
type AuditEntry struct {
	ID           string `json:"id"`
	Action       string `json:"action"`
	User         string `json:"user"`
	TargetTicket string `json:"target_ticket,omitempty"`
	Details      string `json:"details,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// AuditPage is one page of the audit log.
type AuditPage struct {
	Logs  []AuditEntry `json:"logs"`
	Total int64        `json:"total"`
}
