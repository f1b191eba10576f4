package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Envelope is the decoded form of any inbound message. Only the fields used
// by the tagged action are meaningful.
type Envelope struct {
	Action   Action          `json:"action"`
	Room     string          `json:"room,omitempty"`
	Name     string          `json:"name,omitempty"`
	Session  string          `json:"session,omitempty"`
	File     string          `json:"file,omitempty"`
	Lang     string          `json:"lang,omitempty"`
	Host     bool            `json:"host,omitempty"`
	ID       string          `json:"id,omitempty"`
	Team     *int            `json:"team,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Mimetype string          `json:"mimetype,omitempty"`

	// Raw is the JSON form of the whole message, kept for relays.
	Raw json.RawMessage `json:"-"`
}

// DecodeJSON parses a text frame.
func DecodeJSON(data []byte) (*Envelope, error) {
	env := &Envelope{}
	if err := json.Unmarshal(data, env); err != nil {
		return nil, Errorf(CodeParseError, "%v", err)
	}
	if env.Action == "" {
		return nil, Errorf(CodeParseError, "missing action")
	}
	env.Room = strings.ToUpper(strings.TrimSpace(env.Room))
	env.Raw = append(json.RawMessage(nil), data...)
	return env, nil
}

// DecodeBSON parses a binary frame carrying a BSON document. The document is
// normalized to JSON first so both encodings share one schema.
func DecodeBSON(data []byte) (*Envelope, error) {
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, Errorf(CodeParseError, "%v", err)
	}

	j, err := json.Marshal(normalize(doc))
	if err != nil {
		return nil, Errorf(CodeParseError, "%v", err)
	}
	return DecodeJSON(j)
}

// Decode picks the decoder for a frame.
func Decode(data []byte, binary bool) (*Envelope, error) {
	if binary {
		return DecodeBSON(data)
	}
	return DecodeJSON(data)
}

func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case primitive.Binary:
		return base64.StdEncoding.EncodeToString(t.Data)
	case []byte:
		return base64.StdEncoding.EncodeToString(t)
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return int64(t)
	case primitive.Null, primitive.Undefined:
		return nil
	default:
		return v
	}
}

// Validate performs the per-action field checks shared by every transport.
func (e *Envelope) Validate() error {
	need := func(field, value string) error {
		if value == "" {
			return Errorf(CodeParseError, "%s requires %s", e.Action, field)
		}
		return nil
	}

	switch e.Action {
	case HostRoom:
		return nil
	case JoinRoom:
		return need("room", e.Room)
	case GetBackIn, GameWindow:
		return need("session", e.Session)
	}

	// Everything else addresses an existing room.
	if err := need("room", e.Room); err != nil {
		return err
	}

	switch e.Action {
	case ClearBuzzers, DelLogoUpload:
	case RegisterBuzz, RegisterSpectator, Pong, Buzz:
		return need("id", e.ID)
	case Quit:
		if !e.Host {
			return need("id", e.ID)
		}
	case LogoUpload:
		if len(e.Data) == 0 {
			return Errorf(CodeParseError, "%s requires data", e.Action)
		}
		return need("mimetype", e.Mimetype)
	case LoadGame:
		if e.File != "" {
			return need("lang", e.Lang)
		}
		if len(e.Data) == 0 {
			return Errorf(CodeParseError, "%s requires file or data", e.Action)
		}
	case Data, ChangeLang:
		if len(e.Data) == 0 {
			return Errorf(CodeParseError, "%s requires data", e.Action)
		}
	default:
		if !e.Action.IsRelay() {
			return Errorf(CodeParseError, "unknown action %q", e.Action)
		}
	}
	return nil
}

// DataString returns the payload of a data field that carries a JSON string.
func (e *Envelope) DataString() (string, error) {
	var s string
	if err := json.Unmarshal(e.Data, &s); err != nil {
		return "", fmt.Errorf("%s data: %w", e.Action, err)
	}
	return s, nil
}
