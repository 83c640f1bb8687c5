package model

import (
	"github.com/LeonardoBeccarini/crop_advisor/internal/model/entities"
	"github.com/LeonardoBeccarini/crop_advisor/internal/model/messages"
)

// Aliases for the types shared by the services.

type (
	Field          = entities.Field
	Reading        = entities.Reading
	Snapshot       = entities.Snapshot
	Crop           = entities.Crop
	FeedUpdate     = messages.FeedUpdate
	Recommendation = messages.Recommendation
)
