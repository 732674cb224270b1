package model

// Category is the prediction category of a model. The ordinal takes part in
// the Output checksum, so values must only ever be appended.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryBinomial
	CategoryMultinomial
	CategoryRegression
	CategoryClustering
)

func (c Category) String() string {
	switch c {
	case CategoryBinomial:
		return "Binomial"
	case CategoryMultinomial:
		return "Multinomial"
	case CategoryRegression:
		return "Regression"
	case CategoryClustering:
		return "Clustering"
	default:
		return "Unknown"
	}
}

// ParseCategory is the inverse of String; unknown names map to CategoryUnknown.
func ParseCategory(s string) Category {
	for c := CategoryUnknown; c <= CategoryClustering; c++ {
		if c.String() == s {
			return c
		}
	}
	return CategoryUnknown
}

// JobState is the lifecycle state of the training run that produced an Output.
type JobState string

const (
	JobCreated   JobState = "CREATED"
	JobRunning   JobState = "RUNNING"
	JobDone      JobState = "DONE"
	JobFailed    JobState = "FAILED"
	JobCancelled JobState = "CANCELLED"
)

// Algo tags a model family. The builder dispatches on it.
type Algo string

const (
	AlgoGLM    Algo = "glm"
	AlgoTree   Algo = "tree"
	AlgoKMeans Algo = "kmeans"
)
