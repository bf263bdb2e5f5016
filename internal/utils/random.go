package utils

import (
	"fmt"
	"math/rand"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mozillazg/go-pinyin"
	"github.com/sysu-ecnc-dev/workshop-tour/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

func GenerateRandomChineseName() string {
	surname := commonSurnames[rand.Intn(len(commonSurnames))]
	nameLength := rand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[rand.Intn(len(commonNameCharacters))]
	}
	return surname + name
}

var digits = "0123456789"

func GenerateUsernameFromChineseName(chineseName string) string {
	pinyinArray := pinyin.LazyConvert(chineseName, nil)
	username := ""

	for _, pinyin := range pinyinArray {
		length := rand.Intn(len(pinyin)) + 1
		username += pinyin[:length]
	}

	digitsLength := rand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		username += string(digits[rand.Intn(len(digits))])
	}

	return username
}

// GenerateRandomUser 随机生成一个访客用户
func GenerateRandomUser(password string, emailDomainName string) (*domain.User, error) {
	fullName := GenerateRandomChineseName()
	username := GenerateUsernameFromChineseName(fullName)
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(passwordHash),
		FullName:     fullName,
		Email:        username + "@" + emailDomainName,
		Role:         domain.RoleViewer,
	}

	return user, nil
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*")

func GenerateRandomPassword(length int) string {
	random_password := make([]rune, length)
	for i := range random_password {
		random_password[i] = letters[rand.Intn(len(letters))]
	}
	return string(random_password)
}

var lowercaseLetters = "abcdefghijklmnopqrstuvwxyz"

func GenerateRandomID(letterLength int, digitLength int) string {
	random_id := make([]byte, letterLength+digitLength)
	for i := range random_id {
		if i < letterLength {
			random_id[i] = lowercaseLetters[rand.Intn(len(lowercaseLetters))]
		} else {
			random_id[i] = digits[rand.Intn(len(digits))]
		}
	}
	return string(random_id)
}

var datasetSeasons = []string{"春季", "夏季", "秋季", "冬季"}

// GenerateRandomDatasetName 随机生成数据集名称，例如“工作坊参观夏季abc123”
func GenerateRandomDatasetName() string {
	return "工作坊参观" + datasetSeasons[rand.Intn(len(datasetSeasons))] + GenerateRandomID(3, 3)
}

// GenerateRandomFamilies 随机生成 n 个家庭
//
// 家庭人数在 2~8 之间，10 个偏好日期互不相同，前几天（靠近圣诞节）被选中的概率更高
func GenerateRandomFamilies(rng *rand.Rand, n int) []domain.Family {
	families := make([]domain.Family, n)
	for i := range families {
		families[i] = domain.Family{ID: i, Size: rng.Intn(7) + 2}

		seen := make(map[int]struct{}, domain.NumChoices)
		for k := 0; k < domain.NumChoices; {
			var day int
			if rng.Intn(4) == 0 {
				day = rng.Intn(10) + 1
			} else {
				day = rng.Intn(100) + 1
			}
			if _, ok := seen[day]; ok {
				continue
			}
			seen[day] = struct{}{}
			families[i].Choices[k] = day
			k++
		}
	}
	return families
}

// Slugify 把名称转换为只包含小写字母、数字和连字符的标识，汉字会被转换为拼音
func Slugify(name string) string {
	parts := []string{}
	var word strings.Builder

	flush := func() {
		if word.Len() > 0 {
			parts = append(parts, strings.ToLower(word.String()))
			word.Reset()
		}
	}

	for _, r := range name {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			parts = append(parts, pinyin.LazyConvert(string(r), nil)...)
		case r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	if len(parts) == 0 {
		return fmt.Sprintf("dataset-%s", GenerateRandomID(0, 6))
	}
	return strings.Join(parts, "-")
}
