package models

type Tag struct {
	ID   string `gorm:"primaryKey;size:64" json:"_id" bson:"_id"`
	Name string `gorm:"uniqueIndex;not null" json:"name" bson:"name"`
}

// TagCount is how many posts carry a tag.
type TagCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

type AddTagsRequest struct {
	Tags []string `json:"tags" binding:"required,min=1,dive,required,max=50"`
}
