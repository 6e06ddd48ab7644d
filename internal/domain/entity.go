// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"encoding/json"
	"time"
)

// ExecMode identifies the privilege level the process runs with.
type ExecMode string

const (
	ModeStandard ExecMode = "standard"
	ModeElevated ExecMode = "elevated"
)

// Script actions understood by every toggle script.
const (
	ActionQuery   = "Query"
	ActionEnable  = "Enable"
	ActionDisable = "Disable"
)

// ScriptInvocation describes a single external script call.
// Built per call by a feature service, never persisted.
type ScriptInvocation struct {
	Script            string
	Args              []string
	RequiresElevation bool
}

// ResultKind tells whether an InvocationResult carries real script output.
type ResultKind string

const (
	// ResultStructured holds the script's parsed stdout.
	ResultStructured ResultKind = "structured"
	// ResultElevatedAck is returned when the script ran in a separate elevated
	// process whose stdout cannot be read. Callers that need data must issue a
	// follow-up non-elevated Query.
	ResultElevatedAck ResultKind = "elevated_ack"
)

// ElevatedAckMessage is the message carried by every elevated acknowledgment.
const ElevatedAckMessage = "Action executed with elevation."

// ElevatedAck is the wire form of the synthetic elevation acknowledgment.
type ElevatedAck struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// InvocationResult is the outcome of a successful script invocation.
type InvocationResult struct {
	Kind    ResultKind
	Payload json.RawMessage
}

// NewElevatedAck builds the acknowledgment result for shimmed invocations.
func NewElevatedAck() InvocationResult {
	payload, _ := json.Marshal(ElevatedAck{Success: true, Message: ElevatedAckMessage})
	return InvocationResult{Kind: ResultElevatedAck, Payload: payload}
}

// IsElevatedAck reports whether the result is a synthetic acknowledgment.
func (r InvocationResult) IsElevatedAck() bool {
	return r.Kind == ResultElevatedAck
}

// Module status values reported by toggle scripts.
const (
	StatusSafe   = "Safe"
	StatusAtRisk = "At Risk"
)

// ModuleStatus is the state a toggle script reports for its module.
// Enabled=true means the risky (unhardened) condition is currently active.
type ModuleStatus struct {
	Enabled bool   `json:"enabled"`
	Status  string `json:"status"`
	Details string `json:"details"`
}

// Hardened reports whether the module is in its protected state.
func (s ModuleStatus) Hardened() bool {
	return !s.Enabled
}

// Phase tracks where a module's status came from.
// Unknown -> Cached (stale, from disk) -> Querying -> Fresh.
type Phase string

const (
	PhaseUnknown  Phase = "unknown"
	PhaseCached   Phase = "cached"
	PhaseQuerying Phase = "querying"
	PhaseFresh    Phase = "fresh"
)

// ModuleDescriptor is the immutable catalog entry of a toggleable module.
type ModuleDescriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Script      string `json:"script"`
}

// ModuleState is the runtime view of one module.
type ModuleState struct {
	Module     ModuleDescriptor `json:"module"`
	Status     *ModuleStatus    `json:"status,omitempty"`
	Phase      Phase            `json:"phase"`
	Processing bool             `json:"processing"`
}

// HardeningProfile is a named target configuration.
// Settings maps module id to "should be hardened".
type HardeningProfile struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	IsSystem bool            `json:"isSystem"`
	Settings map[string]bool `json:"settings"`
}

// ProfileDocument is the import/export form of a profile.
type ProfileDocument struct {
	Name     string          `json:"name"`
	Settings map[string]bool `json:"settings"`
}

// CacheKey builds the state cache key of a feature module.
func CacheKey(feature, moduleID string) string {
	return feature + "/" + moduleID
}

// StateSnapshot is the persisted state cache document.
type StateSnapshot struct {
	Timestamp time.Time               `json:"timestamp"`
	Settings  map[string]ModuleStatus `json:"settings"`
}

// BridgeInstance describes the running bridge daemon.
// Persisted so the UI shell and CLI can discover it.
type BridgeInstance struct {
	PID           int       `json:"pid"`
	Addr          string    `json:"addr"`
	Token         string    `json:"token"`
	Mode          ExecMode  `json:"mode"`
	Version       string    `json:"version"`
	StartedAt     time.Time `json:"started_at"`
	LastHeartbeat int64     `json:"last_heartbeat"`
}

// Event is a one-way notification pushed to UI subscribers.
type Event struct {
	Channel string      `json:"channel"`
	Payload interface{} `json:"payload,omitempty"`
}

// Notification channels.
const (
	ChannelWindowMaximized  = "windowMaximizedChange"
	ChannelAutoUpdateStatus = "autoUpdateStatus"
	ChannelModuleStatus     = "moduleStatus"
)

// UpdateStatus is the payload of the autoUpdateStatus channel.
type UpdateStatus struct {
	Status      string `json:"status"`
	ReleaseName string `json:"releaseName,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Auto-update status values.
const (
	UpdateChecking     = "checking-for-update"
	UpdateAvailable    = "update-available"
	UpdateNotAvailable = "update-not-available"
	UpdateDownloaded   = "update-downloaded"
	UpdateError        = "error"
)
