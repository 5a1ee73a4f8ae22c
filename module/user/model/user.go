package model

import "time"

const UserTableName = "users"

// User is a registered account. Password holds the bcrypt hash and never
// leaves the server (json:"-").
type User struct {
	ID         string    `bson:"_id" json:"_id"`
	Email      string    `bson:"email" json:"email"`
	FullName   string    `bson:"full_name" json:"fullName"`
	Password   string    `bson:"password" json:"-"`
	Bio        string    `bson:"bio" json:"bio"`
	ProfilePic string    `bson:"profile_pic" json:"profilePic"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

func (*User) TableName() string { return UserTableName }
