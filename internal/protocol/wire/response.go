// Package wire renders protocol responses to canonical v0 text and parses
// them back on the client side.
package wire

import "github.com/danmuck/mcsci/internal/protocol/value"

// ProtocolVersion is the mcsci protocol version this engine speaks.
const ProtocolVersion = 0

// Kind tags one response variant.
type Kind uint8

const (
	Ack Kind = iota
	SetupOk
	SetupError
	ParseFail
	VersionInfo
	Unexpected
	NoSuchExtension
	ExtensionsList
	TypeList
	ProblemList
	ExtensionResponse
	Info
	Status
)

// ExtensionInfo mirrors one registered extension in the extensions response.
// Authors and Commands stay server-side; the v0 extensions line carries the
// name/version/description triple only.
type ExtensionInfo struct {
	Name        string
	Version     string
	Description string
	Authors     []string
	Commands    []string
}

// TypeDef is one alias entry of a type-list response.
type TypeDef struct {
	Alias string
	Decl  value.Descriptor
}

// Response is one server line. The fields used depend on Kind: Value for
// setup-error, unexpected and problem-list; Proto/Server for version; Ext
// for the extension-addressed variants; Usage and Text for
// extension-response; Text alone for info and status.
type Response struct {
	Kind       Kind
	Value      *value.Value
	Proto      int
	Server     string
	Ext        uint32
	Usage      uint64
	Extensions []ExtensionInfo
	Types      []TypeDef
	Text       string
}
