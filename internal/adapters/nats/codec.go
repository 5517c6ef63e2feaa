package natsadapter

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/samirrijal/ridepass/internal/core/domain"
)

// EncodeChange serializes a change event as a protobuf Struct.
func EncodeChange(ev domain.ChangeEvent) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"table":  ev.Table,
		"op":     string(ev.Op),
		"row_id": ev.RowID,
		"at":     ev.At.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("build change struct: %w", err)
	}
	return proto.Marshal(s)
}

// DecodeChange is the inverse of EncodeChange.
func DecodeChange(data []byte) (domain.ChangeEvent, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("unmarshal change: %w", err)
	}
	f := s.GetFields()
	ev := domain.ChangeEvent{
		Table: f["table"].GetStringValue(),
		Op:    domain.ChangeOp(f["op"].GetStringValue()),
		RowID: f["row_id"].GetStringValue(),
	}
	if ts := f["at"].GetStringValue(); ts != "" {
		at, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return ev, fmt.Errorf("parse change time: %w", err)
		}
		ev.At = at
	}
	if ev.Table == "" {
		return ev, errors.New("change without table")
	}
	return ev, nil
}
