package protocol

import (
	"testing"
)

func TestMessageTypeValidate(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		wantErr bool
	}{
		{"valid READY", MessageTypeReady, false},
		{"valid REQ", MessageTypeRequest, false},
		{"valid DONE", MessageTypeDone, false},
		{"valid ERROR", MessageTypeError, false},
		{"valid EXIT", MessageTypeExit, false},
		{"invalid type", MessageType("INVALID"), true},
		{"empty type", MessageType(""), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msgType.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("MessageType.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequestTypeValidate(t *testing.T) {
	tests := []struct {
		name    string
		reqType RequestType
		wantErr bool
	}{
		{"valid config.get", RequestTypeConfigGet, false},
		{"valid config.query", RequestTypeConfigQuery, false},
		{"valid ssg.add_group", RequestTypeSSGAddGroup, false},
		{"valid abtio.create", RequestTypeAbtIOCreate, false},
		{"valid module.load", RequestTypeModuleLoad, false},
		{"valid provider.start", RequestTypeProviderStart, false},
		{"valid client.create", RequestTypeClientCreate, false},
		{"invalid type", RequestType("invalid"), true},
		{"empty type", RequestType(""), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.reqType.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("RequestType.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRequestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     *RequestMessage
		wantErr bool
	}{
		{
			name: "valid request",
			req: &RequestMessage{
				ID:      "req-123",
				Type:    RequestTypeConfigGet,
				Timeout: 30,
			},
			wantErr: false,
		},
		{
			name: "missing ID",
			req: &RequestMessage{
				Type:    RequestTypeConfigGet,
				Timeout: 30,
			},
			wantErr: true,
		},
		{
			name: "invalid type",
			req: &RequestMessage{
				ID:      "req-123",
				Type:    RequestType("invalid"),
				Timeout: 30,
			},
			wantErr: true,
		},
		{
			name: "zero timeout",
			req: &RequestMessage{
				ID:      "req-123",
				Type:    RequestTypeConfigGet,
				Timeout: 0,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("RequestMessage.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
