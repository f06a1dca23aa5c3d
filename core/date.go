package core

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Date is a calendar date (UTC midnight) exchanged as "YYYY-MM-DD".
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func MustParseDate(s string) Date {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return Date{t}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// EndOfDay returns the last instant of the day: 23:59:59.999999999 UTC.
func (d Date) EndOfDay() time.Time {
	return d.Add(24*time.Hour - time.Nanosecond)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t, err := ParseDate(s)
	if err != nil {
		return errors.Wrapf(err, "parsing date %q", s)
	}
	*d = Date{t}
	return nil
}

// Scan implements sql.Scanner for DATE columns.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
	case time.Time:
		*d = NewDate(v)
	case []byte:
		t, err := ParseDate(string(v))
		if err != nil {
			return err
		}
		*d = Date{t}
	case string:
		t, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = Date{t}
	default:
		return errors.Errorf("cannot scan %T into core.Date", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}
