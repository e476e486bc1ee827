package model

type Setting struct {
	ID    uint   `json:"id" gorm:"primaryKey"`
	Key   string `json:"key" gorm:"not null;unique;size:64"`
	Value string `json:"value" gorm:"type:text"`
	Desc  string `json:"desc" gorm:"size:255"`
}
