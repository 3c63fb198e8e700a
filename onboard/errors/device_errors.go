package errors

import "fmt"

// RecordError reports a persisted config record that failed validation.
type RecordError struct {
	Field string
	Got   interface{}
	Want  interface{}
}

func (err RecordError) Error() string {
	if len(err.Field) == 0 {
		err.Field = "UNKNOWN"
	}

	return fmt.Sprintf("invalid config record; %s is %v, expected %v", err.Field, err.Got, err.Want)
}

// StorageError wraps a failure of the non-volatile store.
type StorageError struct {
	Op  string
	Err error
}

func (err StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", err.Op, err.Err)
}

func (err StorageError) Unwrap() error {
	return err.Err
}

type SensorError struct {
	Sensor string
	Err    error
}

func (err SensorError) Error() string {
	if err.Err == nil {
		return fmt.Sprintf("sensor %s not found", err.Sensor)
	}
	return fmt.Sprintf("sensor %s not found: %v", err.Sensor, err.Err)
}

func (err SensorError) Unwrap() error {
	return err.Err
}
