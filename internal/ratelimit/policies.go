package ratelimit

import "time"

const (
	burstWindow  = 10 * time.Minute
	perDayWindow = 24 * time.Hour
)

// Per-endpoint policies. Target-scoped policies are evaluated before the
// global one for the same endpoint; a target denial short-circuits.

// PasswordCreatePolicy throttles door-code submissions per identity.
func PasswordCreatePolicy() Policy {
	return Policy{Action: ActionPassword, MaxCount: 5, Window: burstWindow}
}

// ReviewTargetPolicy allows one review per toilet per identity per day.
func ReviewTargetPolicy(toiletID string) Policy {
	return Policy{Action: ActionReview, MaxCount: 1, Window: perDayWindow, TargetID: toiletID}
}

func ReviewGlobalPolicy() Policy {
	return Policy{Action: ActionReview, MaxCount: 10, Window: burstWindow}
}

func ToiletCreatePolicy() Policy {
	return Policy{Action: ActionToilet, MaxCount: 10, Window: burstWindow}
}

// BuildingCreatePolicy applies only when a genuinely new building row is
// about to be inserted; the address-dedupe path never consults it.
func BuildingCreatePolicy() Policy {
	return Policy{Action: ActionBuilding, MaxCount: 10, Window: burstWindow}
}

// ReportTargetPolicy allows one report per password per identity per day.
func ReportTargetPolicy(passwordID string) Policy {
	return Policy{Action: ActionReport, MaxCount: 1, Window: perDayWindow, TargetID: passwordID}
}

func ReportGlobalPolicy() Policy {
	return Policy{Action: ActionReport, MaxCount: 20, Window: burstWindow}
}

// VoteTargetPolicy allows one vote per password per identity per day.
func VoteTargetPolicy(passwordID string) Policy {
	return Policy{Action: ActionVote, MaxCount: 1, Window: perDayWindow, TargetID: passwordID}
}

func VoteGlobalPolicy() Policy {
	return Policy{Action: ActionVote, MaxCount: 20, Window: burstWindow}
}
