package catalog_test

import (
	"time"

	"eventarr/internal/packmatch"
)

func eventFixture(id int64, title, league string, date time.Time) packmatch.Event {
	return packmatch.Event{ID: id, Title: title, League: league, Date: date, Monitored: true}
}
