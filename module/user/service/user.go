package service

import (
	"context"
	"time"

	usermodel "VChat/module/user/model"
	"VChat/tools/errs"
	"VChat/tools/ids"
	jwtsec "VChat/tools/security"

	pkgerr "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SignupParams struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Bio      string `json:"bio"`
}

type ProfileParams struct {
	FullName   string `json:"fullName"`
	Bio        string `json:"bio"`
	ProfilePic string `json:"profilePic"`
}

func coll(db *mongo.Database) *mongo.Collection {
	return db.Collection(usermodel.UserTableName)
}

// Signup creates an account and issues its first token.
func Signup(ctx context.Context, db *mongo.Database, jwt jwtsec.Options, p SignupParams) (*usermodel.User, string, error) {
	if p.FullName == "" || p.Email == "" || p.Password == "" || p.Bio == "" {
		return nil, "", errs.ErrArgs
	}

	err := coll(db).FindOne(ctx, bson.M{"email": p.Email}).Err()
	if err == nil {
		return nil, "", errs.ErrAccountExists
	}
	if !pkgerr.Is(err, mongo.ErrNoDocuments) {
		return nil, "", pkgerr.Wrap(err, "lookup email")
	}

	hashed, err := jwtsec.HashPassword(p.Password)
	if err != nil {
		return nil, "", pkgerr.Wrap(err, "hash password")
	}

	user := &usermodel.User{
		ID:        ids.GenerateString(),
		Email:     p.Email,
		FullName:  p.FullName,
		Password:  hashed,
		Bio:       p.Bio,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := coll(db).InsertOne(ctx, user); err != nil {
		return nil, "", pkgerr.Wrap(err, "insert user")
	}

	token, _, err := jwtsec.Generate(jwt, user.ID)
	if err != nil {
		return nil, "", pkgerr.Wrap(err, "sign token")
	}
	return user, token, nil
}

// Login verifies credentials and issues a token.
func Login(ctx context.Context, db *mongo.Database, jwt jwtsec.Options, email, password string) (*usermodel.User, string, error) {
	user := &usermodel.User{}
	err := coll(db).FindOne(ctx, bson.M{"email": email}).Decode(user)
	if pkgerr.Is(err, mongo.ErrNoDocuments) {
		return nil, "", errs.ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", pkgerr.Wrap(err, "lookup email")
	}
	if !jwtsec.CheckPassword(user.Password, password) {
		return nil, "", errs.ErrInvalidCredentials
	}

	token, _, err := jwtsec.Generate(jwt, user.ID)
	if err != nil {
		return nil, "", pkgerr.Wrap(err, "sign token")
	}
	return user, token, nil
}

// GetByID loads a user; a missing id maps to ErrUserNotFound.
func GetByID(ctx context.Context, db *mongo.Database, id string) (*usermodel.User, error) {
	user := &usermodel.User{}
	err := coll(db).FindOne(ctx, bson.M{"_id": id}).Decode(user)
	if pkgerr.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrUserNotFound
	}
	if err != nil {
		return nil, pkgerr.Wrap(err, "find user")
	}
	return user, nil
}

// UpdateProfile updates the mutable profile fields and returns the fresh
// document. Empty fields are left untouched.
func UpdateProfile(ctx context.Context, db *mongo.Database, id string, p ProfileParams) (*usermodel.User, error) {
	set := bson.M{}
	if p.FullName != "" {
		set["full_name"] = p.FullName
	}
	if p.Bio != "" {
		set["bio"] = p.Bio
	}
	if p.ProfilePic != "" {
		set["profile_pic"] = p.ProfilePic
	}

	user := &usermodel.User{}
	err := coll(db).FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(user)
	if pkgerr.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrUserNotFound
	}
	if err != nil {
		return nil, pkgerr.Wrap(err, "update profile")
	}
	return user, nil
}

// ListOthers returns every user except exclude, for the sidebar.
func ListOthers(ctx context.Context, db *mongo.Database, exclude string) ([]*usermodel.User, error) {
	cur, err := coll(db).Find(ctx, bson.M{"_id": bson.M{"$ne": exclude}})
	if err != nil {
		return nil, pkgerr.Wrap(err, "find users")
	}
	defer cur.Close(ctx)

	users := make([]*usermodel.User, 0)
	if err := cur.All(ctx, &users); err != nil {
		return nil, pkgerr.Wrap(err, "decode users")
	}
	return users, nil
}
