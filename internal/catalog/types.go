// Package catalog implements the gateway's canonical registry of servers,
// tools, resources, prompts, gateways, and A2A agents (spec §3/§4.4).
package catalog

import "time"

// Visibility classifies who may see a catalog entity.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityTeam    Visibility = "team"
	VisibilityPublic  Visibility = "public"
)

// CreatedVia records how an entity entered the catalog.
type CreatedVia string

const (
	CreatedViaAPI        CreatedVia = "api"
	CreatedViaUI         CreatedVia = "ui"
	CreatedViaBulkImport CreatedVia = "bulk_import"
	CreatedViaFederation CreatedVia = "federation"
)

// IntegrationType identifies how a Tool is invoked.
type IntegrationType string

const (
	IntegrationLocal     IntegrationType = "LOCAL"
	IntegrationREST      IntegrationType = "REST"
	IntegrationGRPC      IntegrationType = "GRPC"
	IntegrationA2A       IntegrationType = "A2A"
	IntegrationFederated IntegrationType = "FEDERATED"
)

// RequestType is the HTTP verb a REST tool issues.
type RequestType string

const (
	RequestGET    RequestType = "GET"
	RequestPOST   RequestType = "POST"
	RequestPATCH  RequestType = "PATCH"
	RequestPUT    RequestType = "PUT"
	RequestDELETE RequestType = "DELETE"
)

// GatewayTransport is the wire transport a federated Gateway speaks.
type GatewayTransport string

const (
	TransportSSE            GatewayTransport = "SSE"
	TransportStreamableHTTP GatewayTransport = "STREAMABLEHTTP"
)

// AuthType identifies how the gateway authenticates to an upstream.
type AuthType string

const (
	AuthBasic   AuthType = "basic"
	AuthBearer  AuthType = "bearer"
	AuthHeaders AuthType = "headers"
	AuthOAuth   AuthType = "oauth"
)

// Entity is the field set every catalog entity shares (spec §3).
type Entity struct {
	ID          string     `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Description string     `json:"description,omitempty" db:"description"`
	Tags        []string   `json:"tags,omitempty" db:"tags"`
	TeamID      string     `json:"team_id,omitempty" db:"team_id"`
	OwnerEmail  string     `json:"owner_email" db:"owner_email"`
	Visibility  Visibility `json:"visibility" db:"visibility"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	CreatedBy   string     `json:"created_by,omitempty" db:"created_by"`
	CreatedVia  CreatedVia `json:"created_via" db:"created_via"`
	Enabled     bool       `json:"enabled" db:"enabled"`
	Reachable   bool       `json:"reachable" db:"reachable"`
}

// Gateway is a registered peer (federated) or directly-managed upstream MCP
// server endpoint.
type Gateway struct {
	Entity
	URL             string           `json:"url" db:"url"`
	Transport       GatewayTransport `json:"transport" db:"transport"`
	AuthType        AuthType         `json:"auth_type,omitempty" db:"auth_type"`
	AuthValueCipher []byte           `json:"-" db:"auth_value_encrypted"`
	CapabilitiesRaw []byte           `json:"capabilities_json,omitempty" db:"capabilities_json"`
}

// Tool is an invocable catalog entity: a local handler, REST adapter, gRPC
// service, A2A agent, or federated peer tool.
type Tool struct {
	Entity
	GatewayID        string          `json:"gateway_id,omitempty" db:"gateway_id"`
	IntegrationType  IntegrationType `json:"integration_type" db:"integration_type"`
	QualifiedName    string          `json:"qualified_name" db:"qualified_name"`
	InputSchema      []byte          `json:"input_schema" db:"input_schema"`
	OutputSchema     []byte          `json:"output_schema,omitempty" db:"output_schema"`
	AnnotationsRaw   []byte          `json:"annotations_json,omitempty" db:"annotations_json"`
	RequestType      RequestType     `json:"request_type,omitempty" db:"request_type"`
	BaseURL          string          `json:"base_url,omitempty" db:"base_url"`
	PathTemplate     string          `json:"path_template,omitempty" db:"path_template"`
	QueryMapping     map[string]string `json:"query_mapping,omitempty" db:"query_mapping"`
	HeaderMapping    map[string]string `json:"header_mapping,omitempty" db:"header_mapping"`
	TimeoutMS        int             `json:"timeout_ms" db:"timeout_ms"`
	ExposePassthrough []string       `json:"expose_passthrough,omitempty" db:"expose_passthrough"`
	Allowlist        []string        `json:"allowlist,omitempty" db:"allowlist"`
	PluginChainPre   []string        `json:"plugin_chain_pre,omitempty" db:"plugin_chain_pre"`
	PluginChainPost  []string        `json:"plugin_chain_post,omitempty" db:"plugin_chain_post"`
	Idempotent       bool            `json:"idempotent,omitempty" db:"idempotent"`
}

// QualifiedSep separates a peer gateway's name from a tool's own name when
// building QualifiedName for federated tools.
const QualifiedSep = "."

// Resource is a readable catalog entity (file, blob, or text snippet).
type Resource struct {
	Entity
	URI      string `json:"uri" db:"uri"`
	MimeType string `json:"mime_type" db:"mime_type"`
	Text     string `json:"text,omitempty" db:"text"`
	Blob     []byte `json:"blob,omitempty" db:"blob"`
}

// Prompt is a reusable prompt template.
type Prompt struct {
	Entity
	Template        string `json:"template" db:"template"`
	ArgumentsSchema []byte `json:"arguments_schema" db:"arguments_schema"`
}

// Server is a virtual server: a named bundle of tools/resources/prompts/A2A
// agents exposed to clients as a single MCP endpoint scope.
type Server struct {
	Entity
	Icon                  string   `json:"icon,omitempty" db:"icon"`
	AssociatedTools       []string `json:"associated_tools,omitempty" db:"associated_tools"`
	AssociatedResources   []string `json:"associated_resources,omitempty" db:"associated_resources"`
	AssociatedPrompts     []string `json:"associated_prompts,omitempty" db:"associated_prompts"`
	AssociatedA2AAgents   []string `json:"associated_a2a_agents,omitempty" db:"associated_a2a_agents"`
}

// A2AAgent is an external AI agent registered as an MCP tool surface.
type A2AAgent struct {
	Entity
	Endpoint        string   `json:"endpoint" db:"endpoint"`
	ProtocolVersion string   `json:"protocol_version" db:"protocol_version"`
	AuthType        AuthType `json:"auth_type,omitempty" db:"auth_type"`
	AuthValueCipher []byte   `json:"-" db:"auth_value_encrypted"`
	Slug            string   `json:"slug" db:"slug"`
}

// Kind names a catalog entity type for use in generic store/filter code and
// logging, so log lines never need a type switch to say what they're about.
type Kind string

const (
	KindTool     Kind = "tool"
	KindResource Kind = "resource"
	KindPrompt   Kind = "prompt"
	KindServer   Kind = "server"
	KindGateway  Kind = "gateway"
	KindA2AAgent Kind = "a2a_agent"
)

// Identifiable exposes the shared Entity fields of a catalog type without a
// type switch, so generic stores can filter/sort any entity kind uniformly.
type Identifiable interface {
	EntityRef() *Entity
}

func (t *Tool) EntityRef() *Entity     { return &t.Entity }
func (r *Resource) EntityRef() *Entity { return &r.Entity }
func (p *Prompt) EntityRef() *Entity   { return &p.Entity }
func (s *Server) EntityRef() *Entity   { return &s.Entity }
func (g *Gateway) EntityRef() *Entity  { return &g.Entity }
func (a *A2AAgent) EntityRef() *Entity { return &a.Entity }
