package clocksync

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValidateSubjectID rejects empty, zero, placeholder and non-positive identifiers.
func ValidateSubjectID(id string) error {
	s := strings.TrimSpace(id)
	if s == "" || s == "0" || s == "None" {
		return fmt.Errorf("subject id %q is empty or a placeholder", id)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("subject id %q must be numeric", id)
	}
	if n <= 0 {
		return fmt.Errorf("subject id %q must be a positive integer", id)
	}
	return nil
}

// RecordID derives the dedup key. Two punches by the same subject within the
// same second share an id.
func RecordID(subjectID string, ts time.Time) string {
	sum := md5.Sum([]byte(subjectID + "_" + ts.Format(DeviceTimeLayout)))
	return hex.EncodeToString(sum[:])
}

func Normalize(raw RawEvent) (NormalizedRecord, error) {
	sid := strings.TrimSpace(string(raw.SubjectID))
	if err := ValidateSubjectID(sid); err != nil {
		return NormalizedRecord{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if raw.Timestamp.IsZero() {
		return NormalizedRecord{}, fmt.Errorf("%w: subject %s has no timestamp", ErrInvalidRecord, sid)
	}
	return NormalizedRecord{
		ID:        RecordID(sid, raw.Timestamp),
		SubjectID: sid,
		Timestamp: raw.Timestamp,
		Status:    int(raw.Status),
		WorkCode:  int(raw.WorkCode),
	}, nil
}

// ToSimpleView never fails; it is only used for diagnostic exports.
func ToSimpleView(raw RawEvent) SimpleRecord {
	return SimpleRecord{
		UserID:      string(raw.SubjectID),
		Date:        raw.Timestamp.Format("2006-01-02"),
		Time:        raw.Timestamp.Format("15:04:05"),
		PunchStatus: int(raw.WorkCode),
		LogStatus:   int(raw.Status),
	}
}
