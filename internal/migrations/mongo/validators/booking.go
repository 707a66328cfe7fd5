package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"tenant_id",
			"client_id",
			"date",
			"start_time",
			"duration_min",
			"status",
			"pricing_mode",
			"location",
			"lines",
			"channel",
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

			"client_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"date": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},

			"start_time": bson.M{
				"bsonType": "string",
				"pattern":  `^([01]\d|2[0-3]):[0-5]\d$`,
			},

			"duration_min": bson.M{
				"bsonType": "int",
				"minimum":  5,
				"maximum":  1440,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"requested",
					"pending",
					"pending_payment",
					"confirmed",
					"cancelled",
					"completed",
					"no_show",
				},
			},

			"pricing_mode": bson.M{
				"bsonType": "string",
				"enum":     []string{"fixed", "hourly"},
			},

			"location": bson.M{
				"bsonType": "string",
				"enum":     []string{"on_site", "customer_address"},
			},

			"lines": bson.M{
				"bsonType": "array",
				"minItems": 1,
				"maxItems": 50,
			},

			"staff": bson.M{
				"bsonType": "array",
				"maxItems": 20,
			},

			"channel": bson.M{
				"bsonType": "string",
				"enum":     []string{"self_service", "staff"},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
