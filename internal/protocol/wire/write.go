package wire

import (
	"strconv"
	"strings"

	"github.com/danmuck/mcsci/internal/protocol/value"
)

// Format renders one response in the canonical v0 grammar, without the line
// terminator.
func Format(r Response) string {
	var sb strings.Builder
	switch r.Kind {
	case Ack:
		sb.WriteString("ack")
	case SetupOk:
		sb.WriteString("setup-ok")
	case SetupError:
		sb.WriteString("setup-error ")
		writeValue(&sb, r.Value)
	case ParseFail:
		sb.WriteString("parsefail")
	case VersionInfo:
		sb.WriteString("version mcsci=")
		sb.WriteString(strconv.Itoa(r.Proto))
		if r.Server != "" {
			sb.WriteString(" server=")
			sb.WriteString(value.QuoteString(r.Server))
		}
	case Unexpected:
		sb.WriteString("unexpected")
		if r.Value != nil {
			sb.WriteByte(' ')
			writeValue(&sb, r.Value)
		}
	case NoSuchExtension:
		sb.WriteString("no-such-extension ")
		sb.WriteString(strconv.FormatUint(uint64(r.Ext), 10))
	case ExtensionsList:
		sb.WriteString("extensions ")
		sb.WriteString(strconv.Itoa(len(r.Extensions)))
		for _, ext := range r.Extensions {
			sb.WriteByte(' ')
			sb.WriteString(value.QuoteString(ext.Name))
			sb.WriteByte(' ')
			sb.WriteString(value.QuoteString(ext.Version))
			sb.WriteByte(' ')
			sb.WriteString(value.QuoteString(ext.Description))
		}
	case TypeList:
		sb.WriteString("type-list ")
		sb.WriteString(strconv.FormatUint(uint64(r.Ext), 10))
		for _, def := range r.Types {
			sb.WriteString(" (")
			sb.WriteString(def.Alias)
			sb.WriteString(" = ")
			sb.WriteString(def.Decl.String())
			sb.WriteByte(')')
		}
	case ProblemList:
		sb.WriteString("problem-list ")
		sb.WriteString(strconv.FormatUint(uint64(r.Ext), 10))
		sb.WriteByte(' ')
		writeValue(&sb, r.Value)
	case ExtensionResponse:
		sb.WriteString("extension-response ")
		sb.WriteString(strconv.FormatUint(r.Usage, 10))
		sb.WriteByte(' ')
		sb.WriteString(r.Text)
	case Info:
		sb.WriteString("info ")
		sb.WriteString(r.Text)
	case Status:
		sb.WriteString("status ")
		sb.WriteString(r.Text)
	}
	return sb.String()
}

func writeValue(sb *strings.Builder, v *value.Value) {
	if v == nil {
		sb.WriteString(`""`)
		return
	}
	sb.WriteString(v.String())
}
