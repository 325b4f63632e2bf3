package seeds

import (
	"encoding/json"

	"eventanalyzer/internal/domain/catalog"
	"eventanalyzer/internal/domain/event"
	"eventanalyzer/internal/domain/model"
)

// StatusSets returns a fresh copy of the default catalogs
func StatusSets() catalog.StatusSets {
	return catalog.StatusSets{
		Motion: []string{"walking", "driving", "sitting", "unknown", "running", "riding"},
		Sound: []string{
			"shop", "hallway", "busy_street", "quiet_street", "flat", "unknown", "train_station",
			"bedroom", "living_room", "supermarket", "walk", "bus_stop", "classroom", "subway",
			"in_bus", "study_quite_office", "forrest", "kitchen",
		},
		Location: []string{
			"economy_hotel", "outdoor", "bath_sauna", "technical_school", "bike_store", "pet_service",
			"clinic", "motorcycle", "guest_house", "ticket_agent", "chinese_restaurant", "flea_market",
			"resort", "pet_market", "digital_store", "coffee", "dessert", "cosmetics_store", "traffic",
			"work_office", "bank", "adult_education", "bar", "talent_market", "university", "cooler",
			"convenience_store", "snack_bar", "home", "post_office", "hostel", "motel", "welfare_house",
			"farmers_market", "vegetarian_diet", "high_school", "sports_store", "gas_station",
			"training_institutions", "muslim", "supermarket", "insurance_company", "others", "auto_sale",
			"video_store", "commodity_market", "chafing_dish", "housekeeping", "residence",
			"convention_center", "atm", "lottery_station", "business_building", "internet_bar",
			"mother_store", "museum", "night_club", "antique_store", "japan_korea_restaurant",
			"other_infrastructure", "car_maintenance", "odeum", "unknown", "hospital", "primary_school",
			"photographic_studio", "drugstore", "glass_store", "bbq", "auto_repair", "toll_station",
			"hotel", "newstand", "stationer", "public_utilities", "library", "security_company",
			"comprehensive_market", "salvage_station", "ktv", "exhibition_hall", "barbershop",
			"clothing_store", "water_supply_office", "telecom_offices", "furniture_store", "gift_store",
			"cinema", "car_wash", "travel_agency", "photography_store", "electricity_office", "pawnshop",
			"game_room", "kinder_garten", "emergency_center", "intermediary", "jewelry_store",
			"parking_plot", "laundry", "scenic_spot", "buffet", "gallery", "western_restaurant",
			"science_museum", "seafood", "cigarette_store",
		},
	}
}

// GMMHMMParams is the default parameter document for new GMMHMM records
func GMMHMMParams() json.RawMessage {
	return json.RawMessage(`{"n_components":3,"n_mix":2,"covariance_type":"diag","n_iter":20,"tol":0.01,"min_covar":0.001,"seed":42}`)
}

func p(category string, weight float64) event.CategoryWeight {
	return event.CategoryWeight{Category: category, Weight: weight}
}

func dist(weights ...event.CategoryWeight) event.Distribution {
	return event.Distribution{Weights: weights, Remainder: event.RemainderUniform}
}

// commuteTable is shared by go_work and go_home
func commuteTable() event.Table {
	return event.Table{
		catalog.Motion:   dist(p("running", 0.1), p("walking", 0.4), p("sitting", 0.1), p("driving", 0.4)),
		catalog.Sound:    dist(p("walk", 0.1), p("quiet_street", 0.1), p("subway", 0.2), p("in_bus", 0.2), p("busy_street", 0.4)),
		catalog.Location: dist(p("traffic", 0.6), p("residence", 0.2)),
	}
}

// Events returns the default event definitions in catalog order
func Events() []*event.Definition {
	tables := []struct {
		name  string
		table event.Table
	}{
		{"travel_in_scenic", event.Table{
			catalog.Motion:   dist(p("walking", 0.6), p("driving", 0.2), p("sitting", 0.1)),
			catalog.Sound:    dist(p("forrest", 0.4), p("walk", 0.2), p("quiet_street", 0.2)),
			catalog.Location: dist(p("scenic_spot", 0.6), p("resort", 0.1), p("hotel", 0.1)),
		}},
		{"emergency", event.Table{
			catalog.Motion:   dist(p("running", 0.4), p("driving", 0.4)),
			catalog.Sound:    dist(p("busy_street", 0.5), p("hallway", 0.2)),
			catalog.Location: dist(p("hospital", 0.4), p("emergency_center", 0.3), p("clinic", 0.2)),
		}},
		{"work_in_office", event.Table{
			catalog.Motion:   dist(p("sitting", 0.8), p("walking", 0.15)),
			catalog.Sound:    dist(p("study_quite_office", 0.7), p("hallway", 0.1)),
			catalog.Location: dist(p("work_office", 0.7), p("business_building", 0.2)),
		}},
		{"go_for_concert", event.Table{
			catalog.Motion:   dist(p("sitting", 0.6), p("walking", 0.3)),
			catalog.Sound:    dist(p("hallway", 0.3), p("unknown", 0.3), p("busy_street", 0.2)),
			catalog.Location: dist(p("odeum", 0.6), p("convention_center", 0.2)),
		}},
		{"dining_in_restaurant", event.Table{
			catalog.Motion: dist(p("sitting", 0.8), p("walking", 0.1)),
			catalog.Sound:  dist(p("shop", 0.4), p("kitchen", 0.2), p("busy_street", 0.1)),
			catalog.Location: dist(p("chinese_restaurant", 0.25), p("western_restaurant", 0.2),
				p("japan_korea_restaurant", 0.15), p("buffet", 0.1), p("bbq", 0.1), p("seafood", 0.05)),
		}},
		{"exercise_indoor", event.Table{
			catalog.Motion:   dist(p("running", 0.6), p("walking", 0.2), p("riding", 0.1)),
			catalog.Sound:    dist(p("hallway", 0.3), p("flat", 0.3), p("living_room", 0.1)),
			catalog.Location: dist(p("home", 0.3), p("residence", 0.3), p("university", 0.2)),
		}},
		{"go_for_outing", event.Table{
			catalog.Motion:   dist(p("walking", 0.5), p("driving", 0.3), p("riding", 0.1)),
			catalog.Sound:    dist(p("forrest", 0.3), p("quiet_street", 0.3), p("busy_street", 0.2)),
			catalog.Location: dist(p("outdoor", 0.4), p("scenic_spot", 0.3), p("resort", 0.1)),
		}},
		{"exercise_outdoor", event.Table{
			catalog.Motion:   dist(p("running", 0.6), p("riding", 0.2), p("walking", 0.2)),
			catalog.Sound:    dist(p("quiet_street", 0.3), p("forrest", 0.3), p("walk", 0.2)),
			catalog.Location: dist(p("outdoor", 0.6), p("scenic_spot", 0.2)),
		}},
		{"go_to_class", event.Table{
			catalog.Motion: {Weights: []event.CategoryWeight{p("walking", 0.2), p("sitting", 0.8)}, Remainder: event.RemainderNone},
			catalog.Sound:  dist(p("classroom", 0.6), p("hallway", 0.2)),
			catalog.Location: dist(p("university", 0.4), p("high_school", 0.2), p("primary_school", 0.1),
				p("training_institutions", 0.1)),
		}},
		{"go_home", goHome()},
		{"shopping_in_mall", event.Table{
			catalog.Motion: dist(p("walking", 0.7), p("sitting", 0.1)),
			catalog.Sound:  dist(p("shop", 0.4), p("supermarket", 0.4)),
			catalog.Location: dist(p("supermarket", 0.3), p("clothing_store", 0.2), p("comprehensive_market", 0.2),
				p("business_building", 0.1)),
		}},
		{"movie_in_cinema", event.Table{
			catalog.Motion:   dist(p("sitting", 0.85), p("walking", 0.1)),
			catalog.Sound:    dist(p("unknown", 0.5), p("hallway", 0.3)),
			catalog.Location: dist(p("cinema", 0.8)),
		}},
		{"go_for_exhibition", event.Table{
			catalog.Motion: dist(p("walking", 0.7), p("sitting", 0.2)),
			catalog.Sound:  dist(p("hallway", 0.5), p("quiet_street", 0.2)),
			catalog.Location: dist(p("exhibition_hall", 0.4), p("museum", 0.2), p("gallery", 0.2),
				p("science_museum", 0.1)),
		}},
		{"go_work", commuteTable()},
	}

	out := make([]*event.Definition, 0, len(tables))
	for i, t := range tables {
		out = append(out, &event.Definition{
			Name:       t.name,
			Position:   i,
			InitParams: event.InitParams{model.GMMHMM: GMMHMMParams()},
			Table:      t.table,
		})
	}
	return out
}

func goHome() event.Table {
	t := commuteTable()
	t[catalog.Location] = dist(p("traffic", 0.5), p("residence", 0.3), p("home", 0.1))
	return t
}
