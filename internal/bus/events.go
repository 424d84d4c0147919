// SPDX-License-Identifier: MIT

package bus

// Topic names one of the closed set of engine events observable by
// collaborators.
type Topic string

const (
	TopicStateChange          Topic = "stateChange"
	TopicError                Topic = "error"
	TopicPause                Topic = "pause"
	TopicExternalSessionStart Topic = "externalSessionStart"
	TopicFocusChanged         Topic = "focusChanged"
	TopicRetryOperation       Topic = "retryOperation"
	TopicReinitialize         Topic = "reinitialize"
	TopicGracefulExit         Topic = "gracefulExit"
	TopicReduceQuality        Topic = "reduceQuality"
	TopicReinitAudio          Topic = "reinitAudio"
	TopicShowErrorScreen      Topic = "showErrorScreen"
	TopicUsePlaceholder       Topic = "usePlaceholder"
	TopicDisableAudio         Topic = "disableAudio"
	TopicEnableOfflineMode    Topic = "enableOfflineMode"
	TopicEmergencyCleanup     Topic = "emergencyCleanup"
	TopicMemoryCheck          Topic = "memoryCheck"
	TopicCleanup              Topic = "cleanup"
)

// StateChange is published after every accepted transition.
type StateChange struct {
	From string `json:"from"`
	To   string `json:"to"`
	Data any    `json:"data,omitempty"`
}

// Paused is published when the Paused state is entered.
type Paused struct {
	From string `json:"from"`
}

// ExternalSessionStarted is published when the ExternalSession state is entered.
type ExternalSessionStarted struct {
	Data any `json:"data,omitempty"`
}

// FocusChanged is published when the ViewingDetail state is entered.
type FocusChanged struct {
	Data any `json:"data,omitempty"`
}

// ErrorReported is published for every reported error, whether it leads to a
// recovery attempt or a fallback.
type ErrorReported struct {
	Err   error  `json:"-"`
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// RecoveryAction is the payload for the strategy topics (retryOperation,
// reinitialize, gracefulExit, reduceQuality, reinitAudio). The owning
// collaborator performs the actual work and the attempt resumes when its
// subscribers return.
type RecoveryAction struct {
	Kind    string `json:"kind"`
	Attempt int    `json:"attempt"`
}

// ShowErrorScreen is the terminal fallback payload for user-visible failures.
type ShowErrorScreen struct {
	Kind string `json:"kind"`
	Err  error  `json:"-"`
}

// UsePlaceholder asks the owning collaborator to substitute placeholder
// content for the failed resource.
type UsePlaceholder struct {
	Kind string `json:"kind"`
}

// AudioDisabled is published for the DisableAudio fallback.
type AudioDisabled struct{}

// OfflineModeEnabled is published for the OfflineMode fallback.
type OfflineModeEnabled struct{}

// EmergencyCleanupDone reports how many resources a pressure sweep disposed.
type EmergencyCleanupDone struct {
	Disposed int `json:"disposed"`
}

// MemoryCheck is published on every completed monitor tick.
type MemoryCheck struct {
	Usage float64 `json:"usage"`
	Used  uint64  `json:"used"`
	Total uint64  `json:"total"`
}

// CleanupDone is published once at the start of full engine teardown.
type CleanupDone struct{}
