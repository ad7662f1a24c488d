package protocol

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestEncoder(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
		wantErr bool
	}{
		{
			name:    "encode ready message",
			msgType: MessageTypeReady,
			data: &ReadyMessage{
				Version:  "0.1.0",
				Address:  "na+sm://13367-0",
				Protocol: "na+sm",
				PID:      1234,
			},
			wantErr: false,
		},
		{
			name:    "encode done message",
			msgType: MessageTypeDone,
			data: &DoneMessage{
				RequestID: "req-123",
				Duration:  1.5,
			},
			wantErr: false,
		},
		{
			name:    "encode error message",
			msgType: MessageTypeError,
			data: &ErrorMessage{
				RequestID: "req-123",
				Code:      ErrCodeUnknownModule,
				Message:   "no library registered for module",
				Retryable: false,
			},
			wantErr: false,
		},
		{
			name:    "encode exit message",
			msgType: MessageTypeExit,
			data: &ExitMessage{
				Reason:        "finalized",
				ExitCode:      0,
				RequestsTotal: 5,
			},
			wantErr: false,
		},
		{
			name:    "invalid message type",
			msgType: MessageType("INVALID"),
			data:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			enc := NewEncoder(&buf)

			err := enc.Encode(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("Encode() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				// Verify output is valid JSON
				line := strings.TrimSpace(buf.String())
				var msg Message
				if err := json.Unmarshal([]byte(line), &msg); err != nil {
					t.Errorf("Output is not valid JSON: %v", err)
				}
				if msg.Type != tt.msgType {
					t.Errorf("Message type = %v, want %v", msg.Type, tt.msgType)
				}
			}
		})
	}
}

func TestEncodeRequest_Invalid(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	err := enc.EncodeRequest(&RequestMessage{Type: RequestTypeConfigGet, Timeout: 30})
	if err == nil {
		t.Error("EncodeRequest() should reject a request without an ID")
	}
	if buf.Len() != 0 {
		t.Errorf("EncodeRequest() wrote %d bytes for an invalid request", buf.Len())
	}
}

func TestDecoder(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		msgType MessageType
	}{
		{
			name:    "decode ready message",
			input:   `{"type":"READY","timestamp":"2024-01-01T00:00:00Z","data":{"version":"0.1.0","address":"na+sm://13367-0","protocol":"na+sm","pid":1234}}`,
			wantErr: false,
			msgType: MessageTypeReady,
		},
		{
			name:    "decode request message",
			input:   `{"type":"REQ","timestamp":"2024-01-01T00:00:00Z","data":{"id":"req-123","type":"config.get","timeout":30}}`,
			wantErr: false,
			msgType: MessageTypeRequest,
		},
		{
			name:    "decode done message",
			input:   `{"type":"DONE","timestamp":"2024-01-01T00:00:00Z","data":{"request_id":"req-123","duration":0.2}}`,
			wantErr: false,
			msgType: MessageTypeDone,
		},
		{
			name:    "invalid json",
			input:   `{invalid json`,
			wantErr: true,
		},
		{
			name:    "empty line",
			input:   ``,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(strings.NewReader(tt.input + "\n"))
			msg, err := dec.Decode()

			if (err != nil) != tt.wantErr {
				t.Errorf("Decode() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if msg.Type != tt.msgType {
					t.Errorf("Message type = %v, want %v", msg.Type, tt.msgType)
				}
			}
		})
	}
}

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		reqType RequestType
	}{
		{
			name:    "valid config.get request",
			input:   `{"type":"REQ","timestamp":"2024-01-01T00:00:00Z","data":{"id":"req-123","type":"config.get","timeout":30}}`,
			wantErr: false,
			reqType: RequestTypeConfigGet,
		},
		{
			name:    "valid provider.start request",
			input:   `{"type":"REQ","timestamp":"2024-01-01T00:00:00Z","data":{"id":"req-124","type":"provider.start","timeout":30,"params":{"name":"my_provider","type":"module_a","provider_id":42}}}`,
			wantErr: false,
			reqType: RequestTypeProviderStart,
		},
		{
			name:    "wrong message type",
			input:   `{"type":"DONE","timestamp":"2024-01-01T00:00:00Z","data":{}}`,
			wantErr: true,
		},
		{
			name:    "missing request id",
			input:   `{"type":"REQ","timestamp":"2024-01-01T00:00:00Z","data":{"type":"config.get","timeout":30}}`,
			wantErr: true,
		},
		{
			name:    "invalid timeout",
			input:   `{"type":"REQ","timestamp":"2024-01-01T00:00:00Z","data":{"id":"req-123","type":"config.get","timeout":0}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(strings.NewReader(tt.input + "\n"))
			req, err := dec.DecodeRequest()

			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeRequest() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if req.Type != tt.reqType {
					t.Errorf("Request type = %v, want %v", req.Type, tt.reqType)
				}
			}
		})
	}
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		params  string
		target  interface{}
		wantErr bool
	}{
		{
			name:    "parse config.query params",
			params:  `{"script":"return config"}`,
			target:  &ConfigQueryParams{},
			wantErr: false,
		},
		{
			name:    "parse provider.start params",
			params:  `{"name":"my_provider","type":"module_a","provider_id":42,"pool":"my_pool"}`,
			target:  &ProviderStartParams{},
			wantErr: false,
		},
		{
			name:    "parse module.load params",
			params:  `{"name":"module_a","path":"/usr/lib/libmodule_a.so"}`,
			target:  &ModuleLoadParams{},
			wantErr: false,
		},
		{
			name:    "invalid json",
			params:  `{invalid}`,
			target:  &ConfigQueryParams{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParseParams(json.RawMessage(tt.params), tt.target)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseParams() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	req := &RequestMessage{
		ID:      "req-1",
		Type:    RequestTypeAbtIOCreate,
		Timeout: 30,
		Params:  json.RawMessage(`{"name":"my_abt_io","pool":"my_pool"}`),
	}
	if err := enc.EncodeRequest(req); err != nil {
		t.Fatalf("EncodeRequest() error = %v", err)
	}

	dec := NewDecoder(&buf)
	got, err := dec.DecodeRequest()
	if err != nil {
		t.Fatalf("DecodeRequest() error = %v", err)
	}
	if got.ID != req.ID || got.Type != req.Type || got.Timeout != req.Timeout {
		t.Errorf("Round trip mismatch: got %+v, want %+v", got, req)
	}

	var params AbtIOCreateParams
	if err := ParseParams(got.Params, &params); err != nil {
		t.Fatalf("ParseParams() error = %v", err)
	}
	if params.Name != "my_abt_io" || params.Pool != "my_pool" {
		t.Errorf("Params mismatch: got %+v", params)
	}
}
