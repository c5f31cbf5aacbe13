package config

type JobStatus string

const (
	QueueEmail      = "email"
	QueueCampaign   = "campaign"
	QueueAutomation = "automation"
	QueueAnalytics  = "analytics"

	JobTypeSendEmail       = "send_email"
	JobTypeProcessCampaign = "process_campaign"
	JobTypeRunAutomation   = "run_automation"
	JobTypeRecordEvent     = "record_event"
)

var (
	AllowedQueues   = []string{QueueEmail, QueueCampaign, QueueAutomation, QueueAnalytics}
	AllowedJobTypes = []string{JobTypeSendEmail, JobTypeProcessCampaign, JobTypeRunAutomation, JobTypeRecordEvent}

	// QueueJobTypes lists the job types each queue accepts.
	QueueJobTypes = map[string][]string{
		QueueEmail:      {JobTypeSendEmail},
		QueueCampaign:   {JobTypeProcessCampaign},
		QueueAutomation: {JobTypeRunAutomation},
		QueueAnalytics:  {JobTypeRecordEvent},
	}
)

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCompleted JobStatus = "completed"
)

var AllowedJobStatuses = []JobStatus{JobStatusQueued, JobStatusRunning, JobStatusFailed, JobStatusCompleted}

const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusSending   = "sending"
	CampaignStatusSent      = "sent"
	CampaignStatusCancelled = "cancelled"
	CampaignStatusFailed    = "failed"

	SubscriberStatusActive       = "active"
	SubscriberStatusUnsubscribed = "unsubscribed"
	SubscriberStatusBounced      = "bounced"
	SubscriberStatusComplained   = "complained"

	AutomationStatusDraft  = "draft"
	AutomationStatusActive = "active"
	AutomationStatusPaused = "paused"

	AutomationModeGraph  = "graph"
	AutomationModeLegacy = "legacy"

	ExecutionStatusRunning   = "RUNNING"
	ExecutionStatusCompleted = "COMPLETED"
	ExecutionStatusFailed    = "FAILED"

	TriggerEmailOpened  = "email_opened"
	TriggerEmailClicked = "email_clicked"
	TriggerManual       = "manual"
)

// Email event types reported by the delivery transport.
const (
	EventSent         = "SENT"
	EventDelivered    = "DELIVERED"
	EventOpened       = "OPENED"
	EventClicked      = "CLICKED"
	EventBounced      = "BOUNCED"
	EventComplained   = "COMPLAINED"
	EventUnsubscribed = "UNSUBSCRIBED"
)

var AllowedEventTypes = []string{
	EventSent, EventDelivered, EventOpened, EventClicked,
	EventBounced, EventComplained, EventUnsubscribed,
}

const DefaultCampaignBatchSize = 100
