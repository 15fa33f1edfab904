package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/aoba-lab/daiko/internal/match"
	"github.com/aoba-lab/daiko/internal/shift"
)

// User-visible texts. Each failure prompt carries the resolved slots so the
// user can correct input on the next turn.

const (
	msgActionNotFound = "メッセージからアクションが読み取れませんでした。ひょっとして業務外のお話ですか?"
	msgInvalidTime    = "時間の指定があるようですが時間が正確に判別できませんでした。指定する時間をDMで教えて下さい。"
)

var weekdayJP = [...]string{"日", "月", "火", "水", "木", "金", "土"}

func msgShiftNotFound(dates []time.Time, rng *shift.TimeRange) string {
	if rng == nil {
		return fmt.Sprintf("%sには有効な対象がありません。日付を間違えていませんか?",
			match.FormatDates(dates, "01/02"))
	}
	return fmt.Sprintf("日付%sと時間%sに対応するシフトがありませんでした。DMでシフトの日付、必要ならば時間も教えてください",
		match.FormatDates(dates, "2006/01/02"), rng.String())
}

func msgAmbiguous(dates []time.Time, rng *shift.TimeRange) string {
	rangeText := "指定なし"
	if rng != nil {
		rangeText = rng.String()
	}
	return fmt.Sprintf("対応するシフトが複数見つかりました。DMで日付や時間を教えて貰えれば絞り込めるかもしれません。\n日付:%s\n時間:%s",
		match.FormatDates(dates, "2006/01/02"), rangeText)
}

// msgShowShift renders one day's schedule as a quoted text list, open
// offers marked.
func msgShowShift(day time.Time, shifts []shift.Shift) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%sのシフトです\n", day.Format("2006/01/02"))
	if len(shifts) == 0 {
		sb.WriteString("> シフトはありません\n")
		return sb.String()
	}
	for _, s := range shifts {
		mark := ""
		if s.Requested {
			mark = " [代行募集中]"
		}
		fmt.Fprintf(&sb, "> * %s %s(%s) %s ~ %s%s\n",
			s.StaffName,
			s.Start.Format("01-02"),
			weekdayJP[int(s.Start.Weekday())],
			s.Start.Format("15:04"),
			s.End.Format("15:04"),
			mark,
		)
	}
	return sb.String()
}

// msgNotice is the channel announcement for a completed substitution turn.
func msgNotice(action shift.Action, userID string, original shift.Shift, plan shift.Plan, rawText string) string {
	date := plan.New.Start.Format("01/02")
	start := plan.New.Start.Format("15:04")
	end := plan.New.End.Format("15:04")
	if action == shift.Contract {
		return fmt.Sprintf("<@%s>さんが<@%s>さんのシフトの代行を引き受けました。\n日付 : %s\n時間 : %s~%s\n> %s",
			userID, original.SlackID, date, start, end, rawText)
	}
	return fmt.Sprintf("<@%s>さんがシフトの代行を依頼しました。\n日付 : %s\n時間 : %s~%s\n> %s",
		userID, date, start, end, rawText)
}

func msgFatal(err error) string {
	return fmt.Sprintf("処理中にエラーが発生しました。もう一度やり直してください。\n> %v", err)
}
