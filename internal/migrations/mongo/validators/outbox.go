package validators

import "go.mongodb.org/mongo-driver/bson"

var OutboxEventValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"tenant_id",
			"kind",
			"event_type",
			"key",
			"payload",
			"status",
			"next_attempt_at",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"tenant_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"kind": bson.M{
				"bsonType": "string",
				"enum":     []string{"notification", "workflow"},
			},

			"event_type": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},

			"key": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 200,
			},

			"payload": bson.M{
				"bsonType": "binData",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"pending", "sent", "dead"},
			},

			"attempts": bson.M{
				"bsonType": "int",
				"minimum":  0,
			},

			"next_attempt_at": bson.M{
				"bsonType": "date",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"sent_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
