package display

import (
	"Go2DAQSpectra/internal/model"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// EncodePoints serializes a batch of points as a protobuf Struct.
func EncodePoints(points []model.Point) ([]byte, error) {
	list := make([]interface{}, 0, len(points))
	for _, p := range points {
		entry := map[string]interface{}{
			"channel":    float64(p.Channel),
			"elapsed_ns": float64(p.Elapsed.Nanoseconds()),
			"kind":       p.Value.Kind.String(),
		}
		switch p.Value.Kind {
		case model.KindScalar:
			entry["value"] = p.Value.Scalar
		case model.KindSequence:
			values := make([]interface{}, len(p.Value.Sequence))
			for i, v := range p.Value.Sequence {
				values[i] = v
			}
			entry["values"] = values
		}
		list = append(list, entry)
	}

	msg, err := structpb.NewStruct(map[string]interface{}{"points": list})
	if err != nil {
		return nil, fmt.Errorf("failed to build points message: %w", err)
	}
	return proto.Marshal(msg)
}

// DecodePoints is the inverse of EncodePoints.
func DecodePoints(data []byte) ([]model.Point, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal points message: %w", err)
	}

	list := msg.GetFields()["points"].GetListValue()
	if list == nil {
		return nil, fmt.Errorf("points message has no points list")
	}
	out := make([]model.Point, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		fields := v.GetStructValue().GetFields()
		if fields == nil {
			return nil, fmt.Errorf("point %d is not a struct", i)
		}
		kind, err := model.ParseKind(fields["kind"].GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		p := model.Point{
			Channel: int(fields["channel"].GetNumberValue()),
			Elapsed: time.Duration(int64(fields["elapsed_ns"].GetNumberValue())),
		}
		switch kind {
		case model.KindScalar:
			p.Value = model.ScalarValue(fields["value"].GetNumberValue())
		case model.KindSequence:
			raw := fields["values"].GetListValue().GetValues()
			seq := make([]float64, len(raw))
			for j, r := range raw {
				seq[j] = r.GetNumberValue()
			}
			p.Value = model.SequenceValue(seq)
		}
		out = append(out, p)
	}
	return out, nil
}

// EncodeLogLine serializes a status line as a protobuf Struct.
func EncodeLogLine(line LogLine) ([]byte, error) {
	msg, err := structpb.NewStruct(map[string]interface{}{
		"time": line.Time.Format(time.RFC3339Nano),
		"text": line.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build log message: %w", err)
	}
	return proto.Marshal(msg)
}

// DecodeLogLine is the inverse of EncodeLogLine.
func DecodeLogLine(data []byte) (LogLine, error) {
	var msg structpb.Struct
	if err := proto.Unmarshal(data, &msg); err != nil {
		return LogLine{}, fmt.Errorf("failed to unmarshal log message: %w", err)
	}
	fields := msg.GetFields()
	ts, err := time.Parse(time.RFC3339Nano, fields["time"].GetStringValue())
	if err != nil {
		return LogLine{}, fmt.Errorf("invalid log line time: %w", err)
	}
	return LogLine{Time: ts, Text: fields["text"].GetStringValue()}, nil
}
