package crawl

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/subsidy-portal/internal/normalize"
	"github.com/JakeFAU/subsidy-portal/internal/record"
)

// Item is one subvention notice in the Korean-keyed shape consumed by the
// normalizer and the UI.
type Item struct {
	SubventionID      string `json:"subventionId"`
	Area              string `json:"지역"`
	Institution       string `json:"접수기관"`
	Title             string `json:"지원사업명"`
	SupportMethod     string `json:"지원 방식"`
	SupportAmount     string `json:"지원금액"`
	InterestRate      string `json:"금리"`
	ReceptionEnd      string `json:"접수 마감일"`
	ApplicationMethod string `json:"접수 방법"`
	URL               string `json:"공고 URL"`
	Source            string `json:"출처"`
	Attachments       string `json:"첨부파일"`
	BusinessTypeCode  string `json:"businessTypeCode"`
}

const noAttachments = "없음"

var ymd = regexp.MustCompile(`^\d{8}$`)

type labelled struct {
	Description string `json:"description"`
}

type detailPayload struct {
	SubventionAreaList []struct {
		AreaName string `json:"areaName"`
	} `json:"subventionAreaList"`
	ReceptionInstitutionName        string     `json:"receptionInstitutionName"`
	SubventionTitleName             string     `json:"subventionTitleName"`
	SubventionSupportMethodCodeList []labelled `json:"subventionSupportMethodCodeList"`
	SupportAmount                   any        `json:"supportAmount"`
	InterestRateDescription         string     `json:"interestRateDescription"`
	ReceptionEndYmd                 string     `json:"receptionEndYmd"`
	SubventionURLAddress            string     `json:"subventionUrlAddress"`
	SubventionHomepageURL           string     `json:"subventionHomepageUrl"`
	PblancDetailURL                 string     `json:"pblancDetailUrl"`
	ApplicationMethodCodeList       []labelled `json:"applicationMethodCodeList"`
	AttachmentList                  []struct {
		FileName string `json:"fileName"`
	} `json:"attachmentList"`
	BusinessTypeCode string `json:"businessTypeCode"`
}

func mapDetail(id string, d *detailPayload) Item {
	areas := make([]string, 0, len(d.SubventionAreaList))
	for _, a := range d.SubventionAreaList {
		areas = append(areas, orSentinel(a.AreaName))
	}
	attachments := make([]string, 0, len(d.AttachmentList))
	for _, a := range d.AttachmentList {
		name := a.FileName
		if name == "" {
			name = "첨부파일"
		}
		attachments = append(attachments, name)
	}
	attachmentText := strings.Join(attachments, ", ")
	if attachmentText == "" {
		attachmentText = noAttachments
	}
	business := d.BusinessTypeCode
	if business == "" {
		business = AllIndustries
	}

	return Item{
		SubventionID:      id,
		Area:              orSentinel(strings.Join(areas, ", ")),
		Institution:       orSentinel(d.ReceptionInstitutionName),
		Title:             orSentinel(d.SubventionTitleName),
		SupportMethod:     joinDescriptions(d.SubventionSupportMethodCodeList),
		SupportAmount:     formatAmount(d.SupportAmount),
		InterestRate:      orSentinel(d.InterestRateDescription),
		ReceptionEnd:      normalizeEndDate(d.ReceptionEndYmd),
		ApplicationMethod: joinDescriptions(d.ApplicationMethodCodeList),
		URL:               normalizeNoticeURL(firstNonEmpty(d.SubventionURLAddress, d.SubventionHomepageURL, d.PblancDetailURL)),
		Source:            orSentinel(d.ReceptionInstitutionName),
		Attachments:       attachmentText,
		BusinessTypeCode:  business,
	}
}

func orSentinel(s string) string {
	if s == "" {
		return record.Sentinel
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func joinDescriptions(list []labelled) string {
	parts := make([]string, 0, len(list))
	for _, l := range list {
		parts = append(parts, orSentinel(l.Description))
	}
	return orSentinel(strings.Join(parts, ", "))
}

func formatAmount(v any) string {
	if !record.Truthy(v) {
		return record.Sentinel
	}
	if n, ok := v.(float64); ok {
		return normalize.FormatDecimal(n) + " 원"
	}
	return record.String(v) + " 원"
}

func normalizeEndDate(s string) string {
	switch {
	case s == "":
		return record.Sentinel
	case ymd.MatchString(s):
		return s[0:4] + "-" + s[4:6] + "-" + s[6:8]
	case strings.Contains(s, "."):
		return strings.ReplaceAll(s, ".", "-")
	case strings.Contains(s, "/"):
		return strings.ReplaceAll(s, "/", "-")
	default:
		return s
	}
}

func normalizeNoticeURL(s string) string {
	if s == "" {
		return record.Sentinel
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return "https://" + s
	}
	return s
}
