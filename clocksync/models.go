package clocksync

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DeviceTimeLayout is the wall-clock layout terminals report and record ids are built from.
const DeviceTimeLayout = "2006-01-02 15:04:05"

// Device is one terminal from the static configuration.
type Device struct {
	Name    string `yaml:"name" json:"name"`
	Address string `yaml:"address" json:"address"`
}

// SubjectID is the device-reported user identifier. Terminals emit it either as a
// JSON string or a JSON number; both decode to the same trimmed string.
type SubjectID string

func (s *SubjectID) UnmarshalJSON(b []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*s = ""
	case string:
		*s = SubjectID(strings.TrimSpace(t))
	case json.Number:
		*s = SubjectID(t.String())
	default:
		return fmt.Errorf("user_id: unsupported type %T", v)
	}
	return nil
}

// Code is a small device status integer. Accepts numbers and numeric strings.
type Code int

func (c *Code) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*c = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("code %q: %w", s, err)
	}
	*c = Code(n)
	return nil
}

// RawEvent is one attendance punch as reported by a terminal.
type RawEvent struct {
	SubjectID SubjectID
	Timestamp time.Time
	Status    Code
	WorkCode  Code
}

type rawEventJSON struct {
	SubjectID json.RawMessage `json:"user_id"`
	Timestamp *string         `json:"timestamp"`
	Status    Code            `json:"status"`
	WorkCode  Code            `json:"punch"`
}

// UnmarshalJSON rejects events missing user_id or timestamp so that a malformed
// export fails at decode time rather than deep inside the pipeline.
func (e *RawEvent) UnmarshalJSON(b []byte) error {
	var aux rawEventJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if len(aux.SubjectID) == 0 {
		return fmt.Errorf("raw event: missing user_id")
	}
	var sid SubjectID
	if err := json.Unmarshal(aux.SubjectID, &sid); err != nil {
		return fmt.Errorf("raw event: %w", err)
	}
	if aux.Timestamp == nil {
		return fmt.Errorf("raw event: missing timestamp")
	}
	ts, err := ParseDeviceTime(*aux.Timestamp)
	if err != nil {
		return fmt.Errorf("raw event: %w", err)
	}
	*e = RawEvent{SubjectID: sid, Timestamp: ts, Status: aux.Status, WorkCode: aux.WorkCode}
	return nil
}

func (e RawEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"user_id":   string(e.SubjectID),
		"timestamp": e.Timestamp.Format(DeviceTimeLayout),
		"status":    int(e.Status),
		"punch":     int(e.WorkCode),
	})
}

// ParseDeviceTime accepts the terminal layout (interpreted in local time) or RFC3339.
func ParseDeviceTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, nil
	}
	layouts := []string{
		DeviceTimeLayout,
		"2006-01-02T15:04:05",
		"2006/01/02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", s)
}

// NormalizedRecord is a validated event ready for upload. ID is the dedup key.
type NormalizedRecord struct {
	ID        string    `json:"doc_id"`
	SubjectID string    `json:"staffId"`
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	WorkCode  int       `json:"workCode"`
}

// SimpleRecord is the unvalidated diagnostic projection of a RawEvent.
type SimpleRecord struct {
	UserID      string `json:"user_id"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	PunchStatus int    `json:"punch_status"`
	LogStatus   int    `json:"log_status"`
}

// AttendanceDocument is one row of the attendance collection in the ledger.
// UploadedAt is assigned by the store on insert.
type AttendanceDocument struct {
	ID         string    `gorm:"primaryKey;size:64"`
	StaffID    string    `gorm:"index;size:32"`
	Timestamp  time.Time `gorm:"index"`
	Status     int
	WorkCode   int
	UploadedAt time.Time `gorm:"autoCreateTime"`
}

// StaffDocument is one row of the staff roster collection.
type StaffDocument struct {
	UserID     string    `gorm:"primaryKey;size:32"`
	Name       string    `gorm:"size:256"`
	Attributes string    `gorm:"type:text"`
	UploadedAt time.Time `gorm:"autoCreateTime"`
}
