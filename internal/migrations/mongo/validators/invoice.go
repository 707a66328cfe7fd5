package validators

import "go.mongodb.org/mongo-driver/bson"

var InvoiceValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"tenant_id",
			"booking_id",
			"number",
			"status",
			"amount_after_tax",
			"issued_at",
			"due_date",
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

			"booking_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"number": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 40,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"draft",
					"generated",
					"paid",
					"cancelled",
				},
			},

			"amount_before_tax": bson.M{
				"bsonType": "long",
			},

			"tax_amount": bson.M{
				"bsonType": "long",
			},

			"amount_after_tax": bson.M{
				"bsonType": "long",
			},

			"issued_at": bson.M{
				"bsonType": "date",
			},

			"due_date": bson.M{
				"bsonType": "date",
			},

			"paid_at": bson.M{
				"bsonType": "date",
			},

			"payment_method": bson.M{
				"bsonType":  "string",
				"maxLength": 40,
			},
		},
	},
}

var LedgerEntryValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"tenant_id",
			"invoice_id",
			"booking_id",
			"kind",
			"amount",
			"posted_at",
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

			"invoice_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"booking_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"kind": bson.M{
				"bsonType": "string",
				"enum":     []string{"receivable", "settlement"},
			},

			"amount": bson.M{
				"bsonType": "long",
			},

			"posted_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
