package vip

import (
	"encoding/json"
)

// Preset program documents, in the format accepted by factory.ConfigFactory.
// They build JSON directly to avoid an import cycle with the factory package.

// NeighborhoodProgramJSON is the default program: R$150 or 4 orders a week,
// R$20 combo on orders of R$30 or more.
func NeighborhoodProgramJSON(anchor string) string {
	return programJSON("150.00", 4, "20.00", "30.00", anchor)
}

// HighVolumeProgramJSON suits busy stores: the bar is higher and so is the
// reward.
func HighVolumeProgramJSON(anchor string) string {
	return programJSON("300.00", 8, "35.00", "50.00", anchor)
}

// LunchClubProgramJSON rewards frequency over ticket size.
func LunchClubProgramJSON(anchor string) string {
	return programJSON("120.00", 5, "15.00", "25.00", anchor)
}

func programJSON(valueGoal string, orderGoal int, reward, minOrder, anchor string) string {
	doc := map[string]any{
		"weekly_value_goal":     valueGoal,
		"weekly_order_goal":     orderGoal,
		"combo_reward_value":    reward,
		"combo_min_order_value": minOrder,
		"week_start_date":       anchor,
		"month_start_date":      anchor,
	}
	b, _ := json.MarshalIndent(doc, "", "  ")
	return string(b)
}
