package auth

import "time"

// IsWithinThresholdPeriod checks if t is within pattern of now
func IsWithinThresholdPeriod(now, t time.Time, pattern string) (bool, error) {
	duration, err := time.ParseDuration(pattern)
	if err != nil {
		return false, err
	}
	return withinWindow(now, t, duration), nil
}

// IsOutsideThresholdPeriod is the negation of IsWithinThresholdPeriod
func IsOutsideThresholdPeriod(now, t time.Time, pattern string) (bool, error) {
	valid, err := IsWithinThresholdPeriod(now, t, pattern)
	if err != nil {
		return false, err
	}
	return !valid, nil
}

func withinWindow(now, t time.Time, d time.Duration) bool {
	return t.After(now.Add(-d))
}
