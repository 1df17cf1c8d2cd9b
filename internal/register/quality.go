package register

import "math"

// Quality buckets a registration's fiducial RMSE for reporting and for
// downstream decisions about whether a well's measurements are trustworthy.
type Quality string

const (
	// QualityExcellent indicates RMSE < 1.5px, an essentially exact fit.
	QualityExcellent Quality = "excellent"
	// QualityGood indicates RMSE 1.5-4px, fine for measurement.
	QualityGood Quality = "good"
	// QualityFair indicates RMSE 4-8px, usable but worth reviewing the overlay.
	QualityFair Quality = "fair"
	// QualityPoor indicates RMSE >= 8px, the well should be reviewed.
	QualityPoor Quality = "poor"
	// QualityUnknown indicates RMSE could not be computed.
	QualityUnknown Quality = "unknown"
)

// Quality RMSE thresholds (pixels).
const (
	RMSEThresholdExcellent = 1.5
	RMSEThresholdGood      = 4.0
	RMSEThresholdFair      = 8.0
)

// QualityForRMSE buckets a fiducial RMSE value.
func QualityForRMSE(rmse float64) Quality {
	switch {
	case math.IsNaN(rmse) || rmse < 0:
		return QualityUnknown
	case rmse < RMSEThresholdExcellent:
		return QualityExcellent
	case rmse < RMSEThresholdGood:
		return QualityGood
	case rmse < RMSEThresholdFair:
		return QualityFair
	default:
		return QualityPoor
	}
}

// Trustworthy reports whether measurements taken under a registration of this
// quality should be used without manual review.
func (q Quality) Trustworthy() bool {
	return q == QualityExcellent || q == QualityGood
}
