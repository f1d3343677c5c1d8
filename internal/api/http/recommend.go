package httpapi

import "github.com/simple-weather/simple-weather/internal/common"

// RecommendActivity maps a provider weather description (Korean, since
// requests use lang=kr) to an activity suggestion for the dashboard.
func RecommendActivity(description string) string {
	switch {
	case description == "":
		return ""
	case common.HasAny(description, "맑"):
		return "맑은 날씨예요! 야외 산책이나 공원 나들이를 추천드려요."
	case common.HasAny(description, "비", "소나기"):
		return "비가 옵니다! 실내에서 카페, 영화 감상 등을 추천드려요."
	case common.HasAny(description, "눈"):
		return "눈이 와요! 따뜻하게 입고 눈 구경 산책 어때요?"
	case common.HasAny(description, "구름", "흐림"):
		return "흐린 날엔 실내 운동이나 독서, 전시 관람도 좋아요."
	default:
		return "현재 날씨에 맞는 추천 활동 정보를 찾지 못했어요."
	}
}
