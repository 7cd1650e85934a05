package validators

import "go.mongodb.org/mongo-driver/bson"

var UserValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"role"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":         bson.M{"bsonType": "string"},
			"role":        bson.M{"enum": []string{"student", "provider", "admin"}},
			"hourly_rate": bson.M{"bsonType": []string{"decimal", "double", "int", "long"}},
			"currency":    bson.M{"bsonType": "string", "minLength": 3, "maxLength": 3},
		},
	},
}

var WindowValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"provider_id", "start", "end", "status", "created_at"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":         bson.M{"bsonType": "string"},
			"provider_id": bson.M{"bsonType": "string", "minLength": 1},
			"start":       bson.M{"bsonType": "date"},
			"end":         bson.M{"bsonType": "date"},
			"status":      bson.M{"enum": []string{"open", "claimed"}},
			"booking_id":  bson.M{"bsonType": "string"},
		},
	},
}

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"student_id",
			"provider_id",
			"window_id",
			"start",
			"end",
			"status",
			"price",
			"currency",
			"created_at",
		},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":         bson.M{"bsonType": "string"},
			"student_id":  bson.M{"bsonType": "string", "minLength": 1},
			"provider_id": bson.M{"bsonType": "string", "minLength": 1},
			"window_id":   bson.M{"bsonType": "string"},
			"start":       bson.M{"bsonType": "date"},
			"end":         bson.M{"bsonType": "date"},
			"status": bson.M{
				"enum": []string{"pending", "confirmed", "in_progress", "completed", "canceled", "no_show"},
			},
			"mode":          bson.M{"enum": []string{"online", "in_person", "hybrid"}},
			"price":         bson.M{"bsonType": "decimal"},
			"currency":      bson.M{"bsonType": "string", "minLength": 3, "maxLength": 3},
			"notes":         bson.M{"bsonType": "string", "maxLength": 1000},
			"cancel_reason": bson.M{"bsonType": "string", "maxLength": 500},
			"canceled_at":   bson.M{"bsonType": "date"},
		},
	},
}

var PaymentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"user_id",
			"amount",
			"currency",
			"type",
			"method",
			"status",
			"created_at",
		},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":        bson.M{"bsonType": "string"},
			"booking_id": bson.M{"bsonType": "string"},
			"user_id":    bson.M{"bsonType": "string", "minLength": 1},
			"amount":     bson.M{"bsonType": "decimal"},
			"currency":   bson.M{"bsonType": "string", "minLength": 3, "maxLength": 3},
			"type":       bson.M{"enum": []string{"deposit", "payout", "refund"}},
			"method":     bson.M{"enum": []string{"mobile_money", "bank_transfer", "cash", "check"}},
			"status":     bson.M{"enum": []string{"pending", "confirmed", "rejected", "cancelled"}},
		},
	},
}
