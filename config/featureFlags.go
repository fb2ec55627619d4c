package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// AutoConfirmSubscriptionOrders makes orders generated from subscriptions go through
// Confirm immediately instead of waiting in RECEIVED for the operator.
//
// Set via env:
// - AUTO_CONFIRM_SUBSCRIPTION_ORDERS=true
func AutoConfirmSubscriptionOrders() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("AUTO_CONFIRM_SUBSCRIPTION_ORDERS")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

var weekdayNames = map[string]time.Weekday{
	"SUNDAY":    time.Sunday,
	"MONDAY":    time.Monday,
	"TUESDAY":   time.Tuesday,
	"WEDNESDAY": time.Wednesday,
	"THURSDAY":  time.Thursday,
	"FRIDAY":    time.Friday,
	"SATURDAY":  time.Saturday,
}

// BuyingCycleAnchorDay is the weekday the weekly procurement run happens.
// Set via env: BUYING_CYCLE_ANCHOR_DAY=THURSDAY
func BuyingCycleAnchorDay() time.Weekday {
	v := strings.ToUpper(strings.TrimSpace(os.Getenv("BUYING_CYCLE_ANCHOR_DAY")))
	if day, ok := weekdayNames[v]; ok {
		return day
	}
	return time.Thursday
}

// BuyingCycleHour is the hour procurement starts on the anchor day.
// Set via env: BUYING_CYCLE_HOUR=9
func BuyingCycleHour() int {
	return hourFromEnv("BUYING_CYCLE_HOUR", 9)
}

// BuyingCycleSameDayCutoff is the anchor-day hour before which the anchor day
// itself still counts as the next cycle.
// Set via env: BUYING_CYCLE_SAME_DAY_CUTOFF=14
func BuyingCycleSameDayCutoff() int {
	return hourFromEnv("BUYING_CYCLE_SAME_DAY_CUTOFF", 14)
}

func hourFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > 23 {
		return def
	}
	return n
}

// DeliveryDispatchTopic is the Pub/Sub topic the dispatch system listens on.
// Empty means dispatch publishing is disabled (dev/local); the delivery record is
// still written so ops can drive deliveries manually.
func DeliveryDispatchTopic() string {
	return strings.TrimSpace(os.Getenv("DELIVERY_DISPATCH_TOPIC"))
}
