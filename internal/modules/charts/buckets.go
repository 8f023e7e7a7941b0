package charts

// PD risk bucket labels. Probability of default is a float in [0,1];
// records group into four fixed buckets instead of their literal values.
const (
	BucketLowRisk      = "Low Risk (≤1%)"
	BucketMediumRisk   = "Medium Risk (1-5%)"
	BucketHighRisk     = "High Risk (5-15%)"
	BucketVeryHighRisk = "Very High Risk (>15%)"
)

// PDBucket assigns a probability of default to its risk bucket. Callers
// must exclude non-positive PDs before bucketing; a record without a
// usable PD does not belong on the chart at all.
func PDBucket(pd float64) string {
	switch {
	case pd <= 0.01:
		return BucketLowRisk
	case pd <= 0.05:
		return BucketMediumRisk
	case pd <= 0.15:
		return BucketHighRisk
	default:
		return BucketVeryHighRisk
	}
}
