package verificationService

import (
	"os"
	"regexp"
	"strings"

	"VerifyGolang/internal/entity"
	"VerifyGolang/pkg/detector"
	"VerifyGolang/pkg/geometry"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

var defaultOCRKeywords = []string{
	"republik indonesia",
	"provinsi",
	"nik",
	"nama",
	"tempat/tgl lahir",
	"jenis kelamin",
	"alamat",
	"agama",
	"kewarganegaraan",
	"berlaku hingga",
}

var ocrPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{16}\b`),                       // national id number
	regexp.MustCompile(`\b\d{2}[-/.]\d{2}[-/.]\d{4}\b`),    // dates
	regexp.MustCompile(`\b[A-Z]{1,3}\d{5,}\b`),             // document numbers
}

func ocrKeywords() []string {
	raw := os.Getenv("OCR_KEYWORDS")
	if raw == "" {
		return defaultOCRKeywords
	}
	var keywords []string
	for _, k := range strings.Split(raw, ",") {
		k = strings.TrimSpace(strings.ToLower(k))
		if k != "" {
			keywords = append(keywords, k)
		}
	}
	if len(keywords) == 0 {
		return defaultOCRKeywords
	}
	return keywords
}

// AnalyzeIDFrame runs the front-side gate chain on one frame. Gates
// short-circuit: each later detector call only happens once every earlier
// gate holds, which keeps per-frame latency bounded by the failing gate.
func (s *verificationService) AnalyzeIDFrame(ctx context.Context, reqID string, frame []byte, seq int64) (*entity.IDFrameReport, error) {
	frameW, frameH, err := s.utils.ImageDims(frame)
	if err != nil {
		return nil, err
	}

	guide := geometry.CenterRect(frameW, frameH, s.th.GuideWRatio, s.th.GuideHRatio)

	report := &entity.IDFrameReport{
		ReqID:       reqID,
		AnalyzedSeq: seq,
		FrameW:      frameW,
		FrameH:      frameH,
		Rect:        entity.GuideBox(guide),
		RoiXYXY: []int{
			int(guide.X1), int(guide.Y1), int(guide.X2), int(guide.Y2),
		},
	}

	// Detection runs on the guide crop only, so background cards on the
	// desk never trigger the gate.
	roiCrop, err := s.utils.CropJPEG(frame, guide)
	if err != nil {
		return nil, err
	}
	roiW, roiH := int(guide.W()), int(guide.H())

	boxes, err := s.detector.DetectIDCards(roiCrop)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"req_id": reqID,
			"error":  err.Error(),
		}).Warn("ID card detection failed")
		return report, nil
	}
	if len(boxes) == 0 {
		return report, nil
	}

	lb := geometry.LetterboxInto(roiW, roiH, detector.InputSize(detector.IDCardDetection))
	best := boxes[0]
	for _, b := range boxes[1:] {
		if b.Conf > best.Conf {
			best = b
		}
	}
	card := translate(lb.MapBack(best.Rect), guide.X1, guide.Y1)

	report.IDCardDetected = true
	report.IDCardBBox = card.XYXY()
	conf := best.Conf
	report.IDCardConf = &conf

	inter, fracIn, interArea := geometry.Intersect(card, guide)
	report.IDFracIn = &fracIn
	report.IDOverlapOK = inter != nil && fracIn >= s.th.OverlapMin
	if !report.IDOverlapOK {
		return report, nil
	}

	sizeRatio := interArea / (guide.Area() + 1e-6)
	report.IDSizeRatio = &sizeRatio
	report.IDSizeOK = sizeRatio >= s.th.GuideCoverMin
	if !report.IDSizeOK {
		return report, nil
	}

	aspectOK, ar := geometry.AspectOK(card.W(), card.H(), s.th.AspectRatio, s.th.AspectTol)
	report.IDAspect = &ar
	if !geometry.AreaFracOK(card, frameW, frameH, s.th.AreaFracMin) || !aspectOK {
		report.IDSizeOK = false
		return report, nil
	}

	// The portrait and OCR gates both read the part of the card inside the
	// guide, so the crop is taken once from the intersection.
	interCrop, err := s.utils.CropJPEG(frame, *inter)
	if err != nil {
		return report, nil
	}

	face, faceOK := s.largestFaceOnCrop(interCrop, int(inter.W()), int(inter.H()))
	if faceOK {
		report.FaceOnID = true
		report.LargestBBox = translate(face, inter.X1, inter.Y1).XYXY()
	} else {
		return report, nil
	}

	lines, err := s.detector.ReadText(interCrop)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"req_id": reqID,
			"error":  err.Error(),
		}).Warn("Text recognition failed")
		return report, nil
	}

	insideRatio, hits, meanConf := s.scoreText(lines, *inter, guide)
	report.OCRInsideRatio = &insideRatio
	report.OCRHits = &hits
	report.OCRMeanConf = &meanConf
	report.OCROK = insideRatio >= s.th.OCRInsideMin &&
		hits >= s.th.OCRMinHits &&
		meanConf >= s.th.OCRConfMin

	report.Verified = report.IDCardDetected && report.IDOverlapOK &&
		report.IDSizeOK && report.FaceOnID && report.OCROK

	return report, nil
}

// largestFaceOnCrop reports the largest detected face on the crop, mapped
// back to crop coordinates, when its area clears the portrait threshold.
func (s *verificationService) largestFaceOnCrop(crop []byte, cropW, cropH int) (geometry.Rect, bool) {
	faces, err := s.detector.DetectFaces(crop)
	if err != nil || len(faces) == 0 {
		return geometry.Rect{}, false
	}

	lb := geometry.LetterboxInto(cropW, cropH, detector.InputSize(detector.FaceDetection))
	largest := lb.MapBack(faces[0].Rect)
	for _, f := range faces[1:] {
		mapped := lb.MapBack(f.Rect)
		if mapped.Area() > largest.Area() {
			largest = mapped
		}
	}

	if !geometry.AreaFracOK(largest, cropW, cropH, s.th.FaceOnIDMin) {
		return geometry.Rect{}, false
	}
	return largest, true
}

// scoreText computes the OCR gate inputs: how much of the recognized text
// sits inside the guide, how many keywords or document patterns hit, and
// the mean recognition confidence.
func (s *verificationService) scoreText(lines []detector.TextBox, crop geometry.Rect, guide geometry.Rect) (float64, int, float64) {
	if len(lines) == 0 {
		return 0, 0, 0
	}

	inside := 0
	confSum := 0.0
	var joined strings.Builder
	for _, line := range lines {
		cx, cy := crop.X1+line.Center.X, crop.Y1+line.Center.Y
		if cx >= guide.X1 && cx <= guide.X2 && cy >= guide.Y1 && cy <= guide.Y2 {
			inside++
		}
		confSum += line.Conf
		joined.WriteString(strings.ToLower(line.Text))
		joined.WriteString(" ")
	}

	text := joined.String()
	hits := 0
	for _, keyword := range ocrKeywords() {
		if fuzzy.PartialRatio(keyword, text) >= s.th.FuzzyThreshold {
			hits++
		}
	}
	upper := strings.ToUpper(text)
	for _, pattern := range ocrPatterns {
		if pattern.MatchString(upper) {
			hits++
		}
	}

	return float64(inside) / float64(len(lines)), hits, confSum / float64(len(lines))
}

// AnalyzeIDBackFrame gates the back-side stream on brightness and card
// presence only; the back has no portrait or keyword signal worth chasing.
func (s *verificationService) AnalyzeIDBackFrame(ctx context.Context, reqID string, frame []byte) (*entity.IDBackFrameReport, error) {
	report := &entity.IDBackFrameReport{ReqID: reqID}

	img, err := s.utils.DecodeImage(frame)
	if err != nil {
		return nil, err
	}
	mean := s.utils.MeanLuminance(img)
	report.BrightnessMean = &mean
	report.BrightnessStatus = s.brightnessStatus(mean)

	bounds := img.Bounds()
	frameW, frameH := bounds.Dx(), bounds.Dy()
	guide := geometry.CenterRect(frameW, frameH, s.th.GuideWRatio, s.th.GuideHRatio)

	roiCrop, err := s.utils.CropJPEG(frame, guide)
	if err != nil {
		return report, nil
	}

	boxes, err := s.detector.DetectIDCards(roiCrop)
	if err != nil || len(boxes) == 0 {
		return report, nil
	}

	lb := geometry.LetterboxInto(int(guide.W()), int(guide.H()), detector.InputSize(detector.IDCardDetection))
	best := boxes[0]
	for _, b := range boxes[1:] {
		if b.Conf > best.Conf {
			best = b
		}
	}
	card := translate(lb.MapBack(best.Rect), guide.X1, guide.Y1)

	report.IDCardDetected = true
	report.IDCardBBox = card.XYXY()
	conf := best.Conf
	report.IDCardConf = &conf

	return report, nil
}

func (s *verificationService) brightnessStatus(mean float64) string {
	switch {
	case mean < s.th.BrightnessMin:
		return entity.BrightnessTooDark
	case mean > s.th.BrightnessMax:
		return entity.BrightnessTooBright
	}
	return entity.BrightnessOK
}

func translate(r geometry.Rect, dx, dy float64) geometry.Rect {
	return geometry.Rect{X1: r.X1 + dx, Y1: r.Y1 + dy, X2: r.X2 + dx, Y2: r.Y2 + dy}
}
