package verificationService

import (
	"math"
	"strings"

	"VerifyGolang/internal/entity"
	"VerifyGolang/pkg/detector"
	"VerifyGolang/pkg/geometry"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

// AnalyzeLivenessFrame runs the selfie gate chain on one frame. Disabled
// checks are skipped entirely, not run-and-ignored, so a deployment without
// a spoof service never pays for the call.
func (s *verificationService) AnalyzeLivenessFrame(ctx context.Context, reqID string, frame []byte, ellipse *geometry.Ellipse) (*entity.LivenessFrameReport, error) {
	report := &entity.LivenessFrameReport{Checks: s.th.Checks}

	img, err := s.utils.DecodeImage(frame)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	frameW, frameH := bounds.Dx(), bounds.Dy()

	if s.th.Checks.Brightness {
		report.BrightnessStatus = s.brightnessStatus(s.utils.MeanLuminance(img))
	}

	if !s.th.Checks.Face {
		// The ellipse, pose and classifier gates all need the detector's
		// face box; with face detection disabled the frame is judged on
		// brightness alone and the presence fields read as one face.
		report.FaceDetected = true
		report.NumFaces = 1
		report.OneFace = true
		return report, nil
	}

	faces, err := s.detector.DetectFaces(frame)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"req_id": reqID,
			"error":  err.Error(),
		}).Warn("Face detection failed on liveness frame")
		return report, nil
	}

	report.NumFaces = len(faces)
	report.OneFace = len(faces) == 1
	if len(faces) == 0 {
		return report, nil
	}
	report.FaceDetected = true

	lb := geometry.LetterboxInto(frameW, frameH, detector.InputSize(detector.FaceDetection))
	largest := faces[0]
	largestRect := lb.MapBack(largest.Rect)
	for _, f := range faces[1:] {
		mapped := lb.MapBack(f.Rect)
		if mapped.Area() > largestRect.Area() {
			largest = f
			largestRect = mapped
		}
	}
	report.LargestBBox = largestRect.XYXY()

	if s.th.Checks.Ellipse && ellipse != nil {
		report.InsideEllipse = ellipse.FaceInside(largestRect, s.th.EllipseInset)
		if !report.InsideEllipse {
			return report, nil
		}
	} else if s.th.Checks.Ellipse {
		// no ellipse control received yet; the frame cannot pass
		return report, nil
	}

	if report.BrightnessStatus != "" && report.BrightnessStatus != entity.BrightnessOK {
		return report, nil
	}

	if s.th.Checks.Frontal {
		front, guidance := s.frontalPose(largest, lb)
		report.FrontFacing = front
		report.FrontGuidance = guidance
		if front != nil && !*front {
			return report, nil
		}
	}

	faceCrop, err := s.utils.CropJPEG(frame, largestRect)
	if err != nil {
		return report, nil
	}

	if s.th.Checks.Spoof {
		verdict, err := s.detector.ClassifySpoof(faceCrop)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"req_id": reqID,
				"error":  err.Error(),
			}).Warn("Spoof classification failed")
		} else {
			isReal := verdict.IsReal
			report.SpoofIsReal = &isReal
			if isReal {
				report.SpoofStatus = "real"
			} else {
				report.SpoofStatus = "spoof"
			}
			if !isReal {
				return report, nil
			}
		}
	}

	if s.th.Checks.Glasses {
		verdict, err := s.detector.ClassifyGlasses(faceCrop)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"req_id": reqID,
				"error":  err.Error(),
			}).Warn("Glasses classification failed")
		} else {
			report.GlassesTop1 = verdict.Top1
			conf := verdict.Conf
			report.GlassesConf = &conf
			wearing := strings.Contains(strings.ToLower(verdict.Top1), "glasses") &&
				verdict.Conf >= s.th.GlassesMin
			report.GlassesDetected = &wearing
		}
	}

	return report, nil
}

// frontalPose decides head pose from the eye/nose landmarks. The nose must
// sit near the eye midline horizontally and slightly below it vertically,
// with tolerances scaled by the inter-eye distance. The guidance string
// tells the user which way to move when the pose fails.
func (s *verificationService) frontalPose(face detector.Face, lb geometry.Letterbox) (*bool, string) {
	if face.Landmarks == nil {
		return nil, ""
	}

	leftEye := lb.MapBackPoint(face.Landmarks.LeftEye)
	rightEye := lb.MapBackPoint(face.Landmarks.RightEye)
	nose := lb.MapBackPoint(face.Landmarks.Nose)

	eyeDist := geometry.Dist(leftEye, rightEye)
	if eyeDist <= 0 {
		return nil, ""
	}

	midX := (leftEye.X + rightEye.X) / 2
	midY := (leftEye.Y+rightEye.Y)/2 + s.th.FrontalEyeMidAdj*eyeDist

	dx := nose.X - midX
	dy := nose.Y - midY

	horizOK := math.Abs(dx) <= s.th.FrontalHorizTol*eyeDist
	vertOK := math.Abs(dy) <= s.th.FrontalVertTol*eyeDist

	front := horizOK && vertOK
	if front {
		return &front, ""
	}

	var guidance string
	switch {
	case !horizOK && dx > 0:
		guidance = "Move LEFT"
	case !horizOK:
		guidance = "Move RIGHT"
	case dy > 0:
		guidance = "Move UP"
	default:
		guidance = "Move DOWN"
	}
	return &front, guidance
}
