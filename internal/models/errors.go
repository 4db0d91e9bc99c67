package models

import "errors"

var (
	// ErrSubmission is returned when a provider rejects a job or the submit call fails.
	ErrSubmission = errors.New("job submission failed")

	// ErrQuery is returned when polling a job's status fails.
	ErrQuery = errors.New("job status query failed")

	// ErrGenerationFailed is returned when the provider reports the job as failed.
	ErrGenerationFailed = errors.New("provider reported generation failure")

	// ErrDelivery is returned when a finished artifact could not be downloaded or stored.
	ErrDelivery = errors.New("artifact delivery failed")

	// ErrConfiguration is returned when configuration is missing or invalid.
	ErrConfiguration = errors.New("invalid configuration")
)
