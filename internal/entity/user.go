package entity

// User represents a user in the system
type User struct {
	Id        int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	Username  string `json:"username" gorm:"column:username;uniqueIndex;size:64"`
	Password  string `json:"-" gorm:"column:password"`
	Avatar    string `json:"avatar" gorm:"column:avatar"`
	CreatedAt int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for User
func (User) TableName() string {
	return "users"
}

// UserInfo represents public user info (without password)
type UserInfo struct {
	Id       int64  `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// ToUserInfo converts User to UserInfo
func (u *User) ToUserInfo() *UserInfo {
	return &UserInfo{
		Id:       u.Id,
		Username: u.Username,
		Avatar:   u.Avatar,
	}
}
