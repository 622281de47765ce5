// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

// Protocol types for the core lifecycle, transport and authorization
// surface of the Model Context Protocol: initialization, capability
// negotiation, cancellation, progress and logging-level control.
//
// The tools/resources/prompts/sampling content façade and its schema
// validation are out of scope for this package; only the capability
// flags needed to negotiate their presence during initialize are kept.

import "maps"

// progressTokenKey is the well-known key under which a progress token is
// stashed in a request's Meta, per the MCP spec's _meta convention.
const progressTokenKey = "progressToken"

// Meta holds protocol-reserved "_meta" fields attached to params and
// results. It is embedded by every Params and Result type.
type Meta map[string]any

// GetMeta returns the metadata map, or nil if none was set.
func (m Meta) GetMeta() map[string]any { return m }

// SetMeta replaces the metadata map.
func (m *Meta) SetMeta(v map[string]any) { *m = v }

func getProgressToken(p Params) any {
	return p.GetMeta()[progressTokenKey]
}

func setProgressToken(p Params, t any) {
	meta := p.GetMeta()
	if meta == nil {
		meta = make(map[string]any)
	}
	if t == nil {
		delete(meta, progressTokenKey)
	} else {
		meta[progressTokenKey] = t
	}
	p.(interface{ SetMeta(map[string]any) }).SetMeta(meta)
}

// Params is implemented by every params type sent as part of a JSON-RPC
// request or notification.
type Params interface {
	isParams()
	GetMeta() map[string]any
	GetProgressToken() any
	SetProgressToken(t any)
}

// Result is implemented by every result type returned from a JSON-RPC
// request.
type Result interface {
	isResult()
}

// The sender or recipient of messages and data in a conversation.
type Role string

// IconTheme specifies the theme an icon is designed for.
type IconTheme string

const (
	IconThemeLight IconTheme = "light"
	IconThemeDark  IconTheme = "dark"
)

// Icon describes an image that can be displayed in a UI.
type Icon struct {
	Src      string    `json:"src"`
	MIMEType string    `json:"mimeType,omitempty"`
	Sizes    string    `json:"sizes,omitempty"`
	Theme    IconTheme `json:"theme,omitempty"`
}

// An Implementation describes the name and version of an MCP
// implementation, with an optional title for UI representation.
type Implementation struct {
	Name       string `json:"name"`
	Title      string `json:"title,omitempty"`
	Version    string `json:"version"`
	WebsiteURL string `json:"websiteUrl,omitempty"`
	Icons      []Icon `json:"icons,omitempty"`
}

// RootCapabilities describes a client's support for roots.
type RootCapabilities struct {
	// ListChanged reports whether the client supports notifications for
	// changes to the roots list.
	ListChanged bool `json:"listChanged,omitempty"`
}

// SamplingContextCapabilities indicates the client supports context
// inclusion in sampling requests.
type SamplingContextCapabilities struct{}

// SamplingToolsCapabilities indicates the client supports tool use in
// sampling requests.
type SamplingToolsCapabilities struct{}

// SamplingCapabilities describes the client's support for sampling.
type SamplingCapabilities struct {
	Context *SamplingContextCapabilities `json:"context,omitempty"`
	Tools   *SamplingToolsCapabilities   `json:"tools,omitempty"`
}

// FormElicitationCapabilities describes capabilities for form elicitation.
type FormElicitationCapabilities struct{}

// URLElicitationCapabilities describes capabilities for url elicitation.
type URLElicitationCapabilities struct{}

// ElicitationCapabilities describes the capabilities for elicitation.
//
// If neither Form nor URL is set, the "Form" capability is assumed.
type ElicitationCapabilities struct {
	Form *FormElicitationCapabilities `json:"form,omitempty"`
	URL  *URLElicitationCapabilities  `json:"url,omitempty"`
}

// Capabilities a client may support. Known capabilities are defined here,
// but this is not a closed set: any client can define its own additional
// capabilities via Experimental/Extensions.
type ClientCapabilities struct {
	// NOTE: any addition to ClientCapabilities must also be reflected in
	// [ClientCapabilities.clone].

	Experimental map[string]any `json:"experimental,omitempty"`
	Extensions   map[string]any `json:"extensions,omitempty"`
	// Roots is present if the client supports roots.
	Roots *RootCapabilities `json:"roots,omitempty"`
	// Sampling is present if the client supports sampling from an LLM.
	Sampling *SamplingCapabilities `json:"sampling,omitempty"`
	// Elicitation is present if the client supports elicitation from the
	// server.
	Elicitation *ElicitationCapabilities `json:"elicitation,omitempty"`
}

// AddExtension adds an extension with the given name and settings.
// If settings is nil, an empty map is used to ensure valid JSON
// serialization (the spec requires an object, not null).
func (c *ClientCapabilities) AddExtension(name string, settings map[string]any) {
	if c.Extensions == nil {
		c.Extensions = make(map[string]any)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	c.Extensions[name] = settings
}

// clone returns a copy of the ClientCapabilities. Values in the
// Extensions and Experimental maps are shallow-copied.
func (c *ClientCapabilities) clone() *ClientCapabilities {
	cp := *c
	cp.Experimental = maps.Clone(c.Experimental)
	cp.Extensions = maps.Clone(c.Extensions)
	cp.Roots = shallowClone(c.Roots)
	if c.Sampling != nil {
		x := *c.Sampling
		x.Tools = shallowClone(c.Sampling.Tools)
		x.Context = shallowClone(c.Sampling.Context)
		cp.Sampling = &x
	}
	if c.Elicitation != nil {
		x := *c.Elicitation
		x.Form = shallowClone(c.Elicitation.Form)
		x.URL = shallowClone(c.Elicitation.URL)
		cp.Elicitation = &x
	}
	return &cp
}

// shallowClone returns a shallow clone of *p, or nil if p is nil.
func shallowClone[T any](p *T) *T {
	if p == nil {
		return nil
	}
	x := *p
	return &x
}

// CompletionCapabilities describes the server's support for argument
// autocompletion.
type CompletionCapabilities struct{}

// LoggingCapabilities describes the server's support for sending log
// messages to the client.
type LoggingCapabilities struct{}

// ServerCapabilities describes capabilities that a server supports.
type ServerCapabilities struct {
	// NOTE: any addition to ServerCapabilities must also be reflected in
	// [ServerCapabilities.clone].

	Experimental map[string]any          `json:"experimental,omitempty"`
	Extensions   map[string]any          `json:"extensions,omitempty"`
	Completions  *CompletionCapabilities `json:"completions,omitempty"`
	Logging      *LoggingCapabilities    `json:"logging,omitempty"`
}

// AddExtension adds an extension with the given name and settings.
func (c *ServerCapabilities) AddExtension(name string, settings map[string]any) {
	if c.Extensions == nil {
		c.Extensions = make(map[string]any)
	}
	if settings == nil {
		settings = map[string]any{}
	}
	c.Extensions[name] = settings
}

// clone returns a copy of the ServerCapabilities.
func (c *ServerCapabilities) clone() *ServerCapabilities {
	cp := *c
	cp.Experimental = maps.Clone(c.Experimental)
	cp.Extensions = maps.Clone(c.Extensions)
	cp.Completions = shallowClone(c.Completions)
	cp.Logging = shallowClone(c.Logging)
	return &cp
}

// InitializeParams carries the client's handshake request.
type InitializeParams struct {
	Meta `json:"_meta,omitempty"`
	// Capabilities describes the client's capabilities.
	Capabilities *ClientCapabilities `json:"capabilities"`
	// ClientInfo provides information about the client.
	ClientInfo *Implementation `json:"clientInfo"`
	// ProtocolVersion is the latest version of the Model Context Protocol
	// that the client supports.
	ProtocolVersion string `json:"protocolVersion"`
}

func (x *InitializeParams) isParams()              {}
func (x *InitializeParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *InitializeParams) SetProgressToken(t any) { setProgressToken(x, t) }

// InitializeResult is sent by the server in response to an initialize
// request from the client.
type InitializeResult struct {
	Meta `json:"_meta,omitempty"`
	// Capabilities describes the server's capabilities.
	Capabilities *ServerCapabilities `json:"capabilities"`
	// Instructions describing how to use the server and its features.
	Instructions string `json:"instructions,omitempty"`
	// ProtocolVersion is the version of the Model Context Protocol that
	// the server wants to use. This may not match the version that the
	// client requested. If the client cannot support this version, it
	// must disconnect.
	ProtocolVersion string          `json:"protocolVersion"`
	ServerInfo      *Implementation `json:"serverInfo"`
}

func (*InitializeResult) isResult() {}

// InitializedParams accompanies the notifications/initialized
// notification, which a client sends once it has processed the
// initialize result.
type InitializedParams struct {
	Meta `json:"_meta,omitempty"`
}

func (x *InitializedParams) isParams()              {}
func (x *InitializedParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *InitializedParams) SetProgressToken(t any) { setProgressToken(x, t) }

// PingParams accompanies a ping request, used to check liveness of a
// peer.
type PingParams struct {
	Meta `json:"_meta,omitempty"`
}

func (x *PingParams) isParams()              {}
func (x *PingParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *PingParams) SetProgressToken(t any) { setProgressToken(x, t) }

// CancelledParams accompanies the notifications/cancelled notification.
type CancelledParams struct {
	Meta `json:"_meta,omitempty"`
	// Reason optionally describes why the request was cancelled. This may
	// be logged or presented to the user.
	Reason string `json:"reason,omitempty"`
	// RequestID is the ID of the request to cancel. This must correspond
	// to the ID of a request previously issued in the same direction.
	RequestID any `json:"requestId"`
}

func (x *CancelledParams) isParams()              {}
func (x *CancelledParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *CancelledParams) SetProgressToken(t any) { setProgressToken(x, t) }

// ProgressNotificationParams accompanies the notifications/progress
// notification.
type ProgressNotificationParams struct {
	Meta `json:"_meta,omitempty"`
	// ProgressToken is the token given in the initial request, used to
	// associate this notification with the request that is proceeding.
	ProgressToken any `json:"progressToken"`
	// Message optionally describes the current progress.
	Message string `json:"message,omitempty"`
	// Progress is how far along the operation is. This should increase
	// every time progress is made, even if Total is unknown.
	Progress float64 `json:"progress"`
	// Total is the total number of items to process (or total progress
	// required), if known. Zero means unknown.
	Total float64 `json:"total,omitempty"`
}

func (x *ProgressNotificationParams) isParams()              {}
func (x *ProgressNotificationParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *ProgressNotificationParams) SetProgressToken(t any) { setProgressToken(x, t) }

// LoggingLevel is one of the RFC 5424 severity levels used by
// logging/setLevel and notifications/message.
type LoggingLevel string

const (
	LoggingLevelDebug     LoggingLevel = "debug"
	LoggingLevelInfo      LoggingLevel = "info"
	LoggingLevelNotice    LoggingLevel = "notice"
	LoggingLevelWarning   LoggingLevel = "warning"
	LoggingLevelError     LoggingLevel = "error"
	LoggingLevelCritical  LoggingLevel = "critical"
	LoggingLevelAlert     LoggingLevel = "alert"
	LoggingLevelEmergency LoggingLevel = "emergency"
)

// SetLoggingLevelParams accompanies a logging/setLevel request.
type SetLoggingLevelParams struct {
	Meta `json:"_meta,omitempty"`
	// Level is the logging level the client wants to receive from the
	// server. The server should send all logs at this level and higher
	// (i.e., more severe) to the client as notifications/message.
	Level LoggingLevel `json:"level"`
}

func (x *SetLoggingLevelParams) isParams()              {}
func (x *SetLoggingLevelParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *SetLoggingLevelParams) SetProgressToken(t any) { setProgressToken(x, t) }

// LoggingMessageParams accompanies a notifications/message notification.
type LoggingMessageParams struct {
	Meta `json:"_meta,omitempty"`
	// Data is the log message's data, which can be any JSON-serializable
	// type.
	Data any `json:"data"`
	// Level is the severity of this log message.
	Level LoggingLevel `json:"level"`
	// Logger is an optional name of the logger issuing this message.
	Logger string `json:"logger,omitempty"`
}

func (x *LoggingMessageParams) isParams()              {}
func (x *LoggingMessageParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *LoggingMessageParams) SetProgressToken(t any) { setProgressToken(x, t) }

// Method names used by the core lifecycle and transport surface.
const (
	methodInitialize           = "initialize"
	notificationInitialized    = "notifications/initialized"
	methodPing                 = "ping"
	notificationCancelled      = "notifications/cancelled"
	notificationProgress       = "notifications/progress"
	methodSetLevel             = "logging/setLevel"
	notificationLoggingMessage = "notifications/message"
)

// latestProtocolVersion is the newest protocol version this module speaks.
const latestProtocolVersion = "2025-03-26"

// supportedProtocolVersions lists every version this module can negotiate
// down to, newest first. See §3's negotiation rule: the server answers
// with a version it supports that is no newer than the client's proposal,
// and the client must accept it only if it appears in this list.
var supportedProtocolVersions = []string{
	"2025-03-26",
	"2024-11-05",
	"2024-10-07",
}

func isSupportedProtocolVersion(v string) bool {
	for _, s := range supportedProtocolVersions {
		if s == v {
			return true
		}
	}
	return false
}
